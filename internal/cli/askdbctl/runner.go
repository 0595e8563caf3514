package askdbctl

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

type Options struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
	Stdout     io.Writer
	Stderr     io.Writer
}

type commandFlags struct {
	preview  bool
	force    bool
	rowLimit int
	limit    int
	tokens   int
	tables   string
}

type request struct {
	method string
	path   string
	body   any
}

func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	fs := flag.NewFlagSet("askdbctl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	baseURL := fs.String("base-url", firstNonEmpty(defaults.BaseURL, "http://localhost:8080"), "askdb API base URL")
	apiKey := fs.String("api-key", defaults.APIKey, "API key for authenticated requests")
	timeout := fs.Duration("timeout", durationOr(defaults.Timeout, 30*time.Second), "HTTP timeout (e.g. 30s)")
	var flags commandFlags
	fs.BoolVar(&flags.preview, "preview", false, "ask: include a bounded preview of safe SQL")
	fs.BoolVar(&flags.force, "force", false, "preview: bypass the preview cache")
	fs.IntVar(&flags.rowLimit, "row-limit", 0, "query: maximum rows to return")
	fs.IntVar(&flags.limit, "limit", 0, "history: maximum entries to return")
	fs.IntVar(&flags.tokens, "tokens", 0, "context: token budget for the schema summary")
	fs.StringVar(&flags.tables, "tables", "", "context: comma separated tables for a focused summary")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		writeUsage(stderr)
		return 2
	}

	client := defaults.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: *timeout}
	}

	command := strings.TrimSpace(fs.Arg(0))
	text := strings.TrimSpace(strings.Join(fs.Args()[1:], " "))
	req, err := buildRequest(command, text, flags)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "%v\n\n", err)
		writeUsage(stderr)
		return 2
	}

	endpoint := strings.TrimRight(*baseURL, "/") + req.path
	code, responseBody, err := doRequest(ctx, client, req.method, endpoint, *apiKey, req.body)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "request failed: %v\n", err)
		return 1
	}

	if code >= 400 {
		_, _ = fmt.Fprintf(stderr, "http %d: %s\n", code, strings.TrimSpace(string(responseBody)))
		return 1
	}

	if pretty, ok := prettyJSON(responseBody); ok {
		_, _ = fmt.Fprintln(stdout, pretty)
		return 0
	}
	if len(responseBody) > 0 {
		_, _ = fmt.Fprintln(stdout, string(responseBody))
	}
	return 0
}

func buildRequest(command, text string, flags commandFlags) (request, error) {
	needsText := func(what string) error {
		if text == "" {
			return fmt.Errorf("command %q requires %s", command, what)
		}
		return nil
	}

	switch command {
	case "health":
		return request{method: http.MethodGet, path: "/v1/health"}, nil
	case "ready":
		return request{method: http.MethodGet, path: "/v1/ready"}, nil
	case "schema":
		return request{method: http.MethodGet, path: "/v1/schema"}, nil
	case "refresh":
		return request{method: http.MethodPost, path: "/v1/schema/refresh"}, nil
	case "context":
		values := url.Values{}
		if flags.tokens > 0 {
			values.Set("tokens", strconv.Itoa(flags.tokens))
		}
		if strings.TrimSpace(flags.tables) != "" {
			values.Set("tables", strings.TrimSpace(flags.tables))
		}
		return request{method: http.MethodGet, path: withQuery("/v1/schema/context", values)}, nil
	case "intent":
		if err := needsText("a question"); err != nil {
			return request{}, err
		}
		return request{method: http.MethodPost, path: "/v1/intent", body: map[string]any{"question": text}}, nil
	case "ask":
		if err := needsText("a question"); err != nil {
			return request{}, err
		}
		return request{method: http.MethodPost, path: "/v1/ask", body: map[string]any{"question": text, "preview": flags.preview}}, nil
	case "validate":
		if err := needsText("SQL"); err != nil {
			return request{}, err
		}
		return request{method: http.MethodPost, path: "/v1/validate", body: map[string]any{"sql": text}}, nil
	case "preview":
		if err := needsText("SQL"); err != nil {
			return request{}, err
		}
		return request{method: http.MethodPost, path: "/v1/preview", body: map[string]any{"sql": text, "force_refresh": flags.force}}, nil
	case "query":
		if err := needsText("SQL"); err != nil {
			return request{}, err
		}
		body := map[string]any{"sql": text}
		if flags.rowLimit > 0 {
			body["row_limit"] = flags.rowLimit
		}
		return request{method: http.MethodPost, path: "/v1/query", body: body}, nil
	case "history":
		values := url.Values{}
		if flags.limit > 0 {
			values.Set("limit", strconv.Itoa(flags.limit))
		}
		return request{method: http.MethodGet, path: withQuery("/v1/history", values)}, nil
	case "favorites":
		return request{method: http.MethodGet, path: "/v1/favorites"}, nil
	default:
		return request{}, fmt.Errorf("unknown command %q", command)
	}
}

func withQuery(path string, values url.Values) string {
	if len(values) == 0 {
		return path
	}
	return path + "?" + values.Encode()
}

func doRequest(ctx context.Context, client *http.Client, method, endpoint, apiKey string, payload any) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if strings.TrimSpace(apiKey) != "" {
		req.Header.Set("X-API-Key", strings.TrimSpace(apiKey))
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, responseBody, nil
}

func prettyJSON(raw []byte) (string, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", false
	}
	var anyValue any
	if err := json.Unmarshal(raw, &anyValue); err != nil {
		return "", false
	}
	formatted, err := json.MarshalIndent(anyValue, "", "  ")
	if err != nil {
		return "", false
	}
	return string(formatted), true
}

func writeUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "usage: askdbctl [flags] <command> [text]")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "commands:")
	_, _ = fmt.Fprintln(w, "  health            GET /v1/health")
	_, _ = fmt.Fprintln(w, "  ready             GET /v1/ready")
	_, _ = fmt.Fprintln(w, "  schema            GET /v1/schema")
	_, _ = fmt.Fprintln(w, "  context           GET /v1/schema/context (-tokens, -tables)")
	_, _ = fmt.Fprintln(w, "  refresh           POST /v1/schema/refresh")
	_, _ = fmt.Fprintln(w, "  intent <question> POST /v1/intent")
	_, _ = fmt.Fprintln(w, "  ask <question>    POST /v1/ask (-preview)")
	_, _ = fmt.Fprintln(w, "  validate <sql>    POST /v1/validate")
	_, _ = fmt.Fprintln(w, "  preview <sql>     POST /v1/preview (-force)")
	_, _ = fmt.Fprintln(w, "  query <sql>       POST /v1/query (-row-limit)")
	_, _ = fmt.Fprintln(w, "  history           GET /v1/history (-limit)")
	_, _ = fmt.Fprintln(w, "  favorites         GET /v1/favorites")
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
