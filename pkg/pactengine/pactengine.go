package pactengine

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	retry "github.com/avast/retry-go/v4"
	"github.com/pkg/errors"
)

// PactEngine is a thin client for a running engine server.
type PactEngine struct {
	client http.Client
	url    string
}

func New(url string) *PactEngine {
	return &PactEngine{
		client: http.Client{
			Timeout: 30 * time.Second,
		},
		url: strings.TrimSuffix(url, "/"),
	}
}

// WaitForReady polls the readiness endpoint until the engine answers or the
// context expires.
func (p *PactEngine) WaitForReady(ctx context.Context) error {
	return retry.Do(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url+"/ready", nil)
		if err != nil {
			return retry.Unrecoverable(err)
		}
		res, err := p.client.Do(req)
		if err != nil {
			return err
		}
		res.Body.Close()
		if res.StatusCode != http.StatusOK {
			return errors.Errorf("engine not ready, status %d", res.StatusCode)
		}
		return nil
	}, retry.Context(ctx), retry.Delay(100*time.Millisecond))
}

// AddInteraction posts an interaction definition. The definition may be any
// value that marshals to the interaction-file schema, including raw bytes.
func (p *PactEngine) AddInteraction(definition interface{}) error {
	content, err := marshalBody(definition)
	if err != nil {
		return errors.Wrap(err, "failed to marshal interaction definition")
	}

	res, err := p.post("/interactions", content)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusCreated {
		return errors.New(readError(res))
	}
	return nil
}

func (p *PactEngine) Interactions() ([]string, error) {
	req, err := http.NewRequest(http.MethodGet, p.url+"/interactions", nil)
	if err != nil {
		return nil, err
	}
	res, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, errors.New(readError(res))
	}
	var list InteractionList
	if err := json.NewDecoder(res.Body).Decode(&list); err != nil {
		return nil, errors.Wrap(err, "failed to decode interaction list")
	}
	return list.Interactions, nil
}

func (p *PactEngine) Clear() error {
	req, err := http.NewRequest(http.MethodDelete, p.url+"/interactions", nil)
	if err != nil {
		return err
	}
	res, err := p.client.Do(req)
	if err != nil {
		return err
	}
	res.Body.Close()

	if res.StatusCode != http.StatusNoContent {
		return errors.New("error clearing interactions")
	}
	return nil
}

// Match submits an actual value against a stored interaction and returns the
// structured result.
func (p *PactEngine) Match(description, part, target string, actual interface{}) (*MatchResult, error) {
	content, err := marshalBody(actual)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal actual value")
	}

	res, err := p.post(slotPath(description, "match", part, target), content)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, errors.New(readError(res))
	}
	var result MatchResult
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, errors.Wrap(err, "failed to decode match result")
	}
	return &result, nil
}

// Generate resolves the generators of a stored interaction and returns the
// concrete value. Provider state values are optional.
func (p *PactEngine) Generate(description, part, target string, providerState map[string]interface{}) (json.RawMessage, error) {
	var content []byte
	if len(providerState) > 0 {
		var err error
		content, err = json.Marshal(providerState)
		if err != nil {
			return nil, errors.Wrap(err, "failed to marshal provider state values")
		}
	}

	res, err := p.post(slotPath(description, "generate", part, target), content)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, errors.New(readError(res))
	}
	return io.ReadAll(res.Body)
}

func (p *PactEngine) post(path string, content []byte) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodPost, p.url+path, bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return p.client.Do(req)
}

func slotPath(description, op, part, target string) string {
	q := url.Values{}
	if part != "" {
		q.Add("part", part)
	}
	if target != "" {
		q.Add("target", target)
	}
	path := "/interactions/" + url.PathEscape(description) + "/" + op
	if encoded := q.Encode(); encoded != "" {
		path += "?" + encoded
	}
	return path
}

func marshalBody(v interface{}) ([]byte, error) {
	switch content := v.(type) {
	case []byte:
		return content, nil
	case json.RawMessage:
		return content, nil
	case string:
		return []byte(content), nil
	}
	return json.Marshal(v)
}

func readError(res *http.Response) string {
	body, err := io.ReadAll(res.Body)
	if err != nil || len(body) == 0 {
		return res.Status
	}
	var apiErr struct {
		ErrorMessage string `json:"error_message"`
	}
	if json.Unmarshal(body, &apiErr) == nil && apiErr.ErrorMessage != "" {
		return apiErr.ErrorMessage
	}
	return string(body)
}
