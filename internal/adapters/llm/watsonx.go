package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	iamTokenURL       = "https://iam.cloud.ibm.com/identity/token"
	watsonxAPIVersion = "2023-05-29"
)

// WatsonxProvider calls the IBM watsonx.ai text generation API. The IAM
// bearer token obtained from the API key is cached and refreshed shortly
// before expiry.
type WatsonxProvider struct {
	client    *http.Client
	baseURL   string
	apiKey    string
	projectID string
	opts      Options
	tokenURL  string

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

func NewWatsonxProvider(baseURL, apiKey, projectID string, opts Options) *WatsonxProvider {
	return &WatsonxProvider{
		client:    &http.Client{Timeout: 120 * time.Second},
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		projectID: projectID,
		opts:      opts,
		tokenURL:  iamTokenURL,
	}
}

type watsonxParameters struct {
	DecodingMethod    string   `json:"decoding_method"`
	MaxNewTokens      int      `json:"max_new_tokens"`
	Temperature       float64  `json:"temperature"`
	TopP              float64  `json:"top_p"`
	RepetitionPenalty float64  `json:"repetition_penalty"`
	StopSequences     []string `json:"stop_sequences,omitempty"`
}

type watsonxRequest struct {
	ModelID    string            `json:"model_id"`
	ProjectID  string            `json:"project_id"`
	Input      string            `json:"input"`
	Parameters watsonxParameters `json:"parameters"`
}

type watsonxResponse struct {
	Results []struct {
		GeneratedText string `json:"generated_text"`
		StopReason    string `json:"stop_reason"`
	} `json:"results"`
}

func (p *WatsonxProvider) GenerateText(ctx context.Context, prompt string) (string, error) {
	token, err := p.token(ctx)
	if err != nil {
		return "", err
	}

	reqBody := watsonxRequest{
		ModelID:   p.opts.Model,
		ProjectID: p.projectID,
		Input:     prompt,
		Parameters: watsonxParameters{
			DecodingMethod:    "sample",
			MaxNewTokens:      p.opts.MaxTokens,
			Temperature:       p.opts.Temperature,
			TopP:              p.opts.TopP,
			RepetitionPenalty: p.opts.RepetitionPenalty,
			StopSequences:     p.opts.Stop,
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	endpoint := fmt.Sprintf("%s/ml/v1/text/generation?version=%s", p.baseURL, watsonxAPIVersion)
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("watsonx connection failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("watsonx returned status %d: %s", resp.StatusCode, string(body))
	}

	var genResp watsonxResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(genResp.Results) == 0 {
		return "", fmt.Errorf("no results in response")
	}

	return genResp.Results[0].GeneratedText, nil
}

// token returns a valid IAM access token, exchanging the API key when the
// cached one is missing or about to expire.
func (p *WatsonxProvider) token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.accessToken != "" && time.Now().Before(p.tokenExpiry) {
		return p.accessToken, nil
	}

	form := url.Values{
		"grant_type": {"urn:ibm:params:oauth:grant-type:apikey"},
		"apikey":     {p.apiKey},
	}
	req, err := http.NewRequestWithContext(ctx, "POST", p.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("iam token exchange failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("iam returned status %d: %s", resp.StatusCode, string(body))
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return "", fmt.Errorf("empty access token in response")
	}

	p.accessToken = tokenResp.AccessToken
	// Refresh a minute early so in-flight requests never carry a stale token.
	p.tokenExpiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn)*time.Second - time.Minute)
	return p.accessToken, nil
}
