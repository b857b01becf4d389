package judge

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"
)

// VerdictFunc receives the asynchronous pronunciation verdict for one
// problem.
type VerdictFunc func(sessionID string, problemNumber int, correct bool)

// Client submits recorded audio to the external pronunciation-judging
// service. Submissions never block the caller: the HTTP round trip runs in
// its own goroutine and the verdict is delivered through the callback
// whenever it arrives.
type Client struct {
	endpoint string
	verdict  VerdictFunc
	http     *http.Client
}

// New creates a judging client. JUDGE_ENDPOINT must be set.
func New(verdict VerdictFunc) (*Client, error) {
	endpoint := os.Getenv("JUDGE_ENDPOINT")
	if endpoint == "" {
		return nil, fmt.Errorf("JUDGE_ENDPOINT environment variable is not set")
	}

	return &Client{
		endpoint: endpoint,
		verdict:  verdict,
		http:     &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// judgeRequest is the payload sent to the judging service
type judgeRequest struct {
	SessionID     string `json:"session_id"`
	ProblemNumber int    `json:"problem_number"`
	AudioURL      string `json:"audio_url"`
}

// judgeResponse is the verdict returned by the judging service
type judgeResponse struct {
	Correct bool    `json:"correct"`
	Error   *string `json:"error,omitempty"`
}

// Submit hands audio off for judging and returns immediately
func (c *Client) Submit(sessionID string, problemNumber int, audioURL string) {
	go func() {
		correct, err := c.judge(sessionID, problemNumber, audioURL)
		if err != nil {
			log.Printf("judging failed for session %s problem %d: %v", sessionID, problemNumber, err)
			return
		}
		c.verdict(sessionID, problemNumber, correct)
	}()
}

func (c *Client) judge(sessionID string, problemNumber int, audioURL string) (bool, error) {
	requestData, err := json.Marshal(judgeRequest{
		SessionID:     sessionID,
		ProblemNumber: problemNumber,
		AudioURL:      audioURL,
	})
	if err != nil {
		return false, fmt.Errorf("failed to marshal request: %v", err)
	}

	req, err := http.NewRequest("POST", c.endpoint, bytes.NewBuffer(requestData))
	if err != nil {
		return false, fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to send request: %v", err)
	}
	defer resp.Body.Close()

	var response judgeResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return false, fmt.Errorf("failed to decode response: %v", err)
	}
	if response.Error != nil {
		return false, fmt.Errorf("API error: %s", *response.Error)
	}

	return response.Correct, nil
}
