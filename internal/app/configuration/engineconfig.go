package configuration

import (
	"context"

	"github.com/form3tech-oss/pact-engine/internal/app/engineapi"
	"github.com/pkg/errors"
	"github.com/sethvargo/go-envconfig"
)

func NewFromEnv() (engineapi.Config, error) {
	ctx := context.Background()

	var config engineapi.Config
	err := envconfig.Process(ctx, &config)
	if err != nil {
		return config, errors.Wrap(err, "process env config")
	}
	return config, nil
}
