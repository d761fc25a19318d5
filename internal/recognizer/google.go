package recognizer

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ovozlabs/ovozd/internal/media"
)

// DefaultEndpoint is the Google web speech endpoint.
const DefaultEndpoint = "http://www.google.com/speech-api/v2/recognize"

type googleRecognizer struct {
	endpoint string
	key      string
	client   *http.Client
}

// googleResponse is one line of the backend's newline-delimited JSON stream.
type googleResponse struct {
	Result []struct {
		Alternative []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternative"`
		Final bool `json:"final"`
	} `json:"result"`
	ResultIndex int `json:"result_index"`
}

// NewGoogleRecognizer builds a Recognizer backed by the Google web speech
// API. The call is synchronous and may block for seconds; timeout bounds it.
func NewGoogleRecognizer(endpoint, key string, timeout time.Duration) Recognizer {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &googleRecognizer{
		endpoint: endpoint,
		key:      key,
		client:   &http.Client{Timeout: timeout},
	}
}

func (g *googleRecognizer) Recognize(ctx context.Context, wavPath string, lang Language) Result {
	pcm, err := media.LoadPCM(wavPath)
	if err != nil {
		return InternalError(fmt.Sprintf("load waveform: %v", err))
	}

	query := url.Values{}
	query.Set("client", "chromium")
	query.Set("lang", lang.Locale())
	if g.key != "" {
		query.Set("key", g.key)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		g.endpoint+"?"+query.Encode(), bytes.NewReader(pcm))
	if err != nil {
		return InternalError(fmt.Sprintf("build request: %v", err))
	}
	req.Header.Set("Content-Type",
		fmt.Sprintf("audio/l16; rate=%d", media.TargetSampleRate))

	resp, err := g.client.Do(req)
	if err != nil {
		// Unreachable and timed-out backends land here; both count as the
		// backend being unavailable rather than an internal fault.
		return BackendUnavailable(fmt.Sprintf("speech backend: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return BackendUnavailable(fmt.Sprintf("speech backend returned %s", resp.Status))
	}

	return parseGoogleStream(resp.Body)
}

// parseGoogleStream walks the newline-delimited JSON lines and returns the
// first transcript found. A stream with no transcript means the backend could
// not understand the speech.
func parseGoogleStream(body io.Reader) Result {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var chunk googleResponse
		if err := json.Unmarshal(line, &chunk); err != nil {
			return InternalError(fmt.Sprintf("decode speech response: %v", err))
		}
		for _, res := range chunk.Result {
			if len(res.Alternative) > 0 && res.Alternative[0].Transcript != "" {
				return OK(res.Alternative[0].Transcript)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return InternalError(fmt.Sprintf("read speech response: %v", err))
	}
	return Unrecognized()
}
