/*
Package server implements msgpack IPC for morphological analysis.

The server reads a stream of msgpack requests from stdin and writes one msgpack
response per request to stdout. Logs go to stderr.

# IPC

Every request carries an ID echoed in its response and an action. An empty
action means "analyze":

	{"id": "req_001", "x": "깜짝 놀랐다", "n": 2}

The server responds with ranked segmentations; each token is
[form, tag, start, length] with offsets in characters:

	{"id": "req_001", "r": [{"k": [["깜짝", "NNP", 0, 2], ...], "s": -3.2}], "c": 1, "t": 145}

Lexicon management:

	{"id": "w_001", "action": "add_word", "f": "깜짝", "g": "NNP", "s": 10}
	{"id": "p_001", "action": "prepare"}
	{"id": "st_001", "action": "stats"}

Added words are visible to analysis after the next prepare.

# Message Types

Request is the single inbound shape; fields unused by an action are omitted.
AnalyzeResponse carries results and timing in microseconds. StatusResponse
answers the management actions. ErrorResponse reports failures with a code:
400 for bad requests, 409 for an unprepared or busy engine, 500 otherwise.
*/
package server

// Actions understood by the server.
const (
	ActionAnalyze = "analyze"
	ActionAddWord = "add_word"
	ActionPrepare = "prepare"
	ActionStats   = "stats"
)

// Request - any client request
type Request struct {
	ID     string   `msgpack:"id"`
	Action string   `msgpack:"action,omitempty"`
	Text   string   `msgpack:"x,omitempty"`
	TopN   int      `msgpack:"n,omitempty"`
	Form   string   `msgpack:"f,omitempty"`
	Tag    string   `msgpack:"g,omitempty"`
	Score  *float64 `msgpack:"s,omitempty"`
}

// ResultToken encodes as [form, tag, start, length].
type ResultToken struct {
	_msgpack struct{} `msgpack:",as_array"`
	Form     string
	Tag      string
	Start    int
	Len      int
}

// AnalysisResult - one ranked segmentation
type AnalysisResult struct {
	Tokens []ResultToken `msgpack:"k"`
	Score  float64       `msgpack:"s"`
}

// AnalyzeResponse - analyze response
type AnalyzeResponse struct {
	ID        string           `msgpack:"id"`
	Results   []AnalysisResult `msgpack:"r"`
	Count     int              `msgpack:"c"`
	TimeTaken int64            `msgpack:"t"`
}

// StatusResponse - management operation response
type StatusResponse struct {
	ID        string         `msgpack:"id"`
	Status    string         `msgpack:"status"`
	Entries   int            `msgpack:"entries,omitempty"`
	Stats     map[string]int `msgpack:"stats,omitempty"`
	TimeTaken int64          `msgpack:"t"`
}

// ErrorResponse holds basic error information for any request
type ErrorResponse struct {
	ID    string `msgpack:"id"`
	Error string `msgpack:"e"`
	Code  int    `msgpack:"c"`
}
