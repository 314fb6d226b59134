package matching

import "io"

// Upload is a single file part of a match request.
type Upload struct {
	Filename string
	Open     func() (io.ReadCloser, error)
}

// Request is a job description together with the résumés to rank against it.
type Request struct {
	JobDescription string
	Uploads        []Upload
}

// Result is the outcome for one uploaded file: either a score or an error.
type Result struct {
	Filename string   `json:"filename"`
	Score    string   `json:"score,omitempty"`
	RawScore *float64 `json:"raw_score,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// Scored reports whether the result carries a similarity score.
func (r *Result) Scored() bool {
	return r.RawScore != nil
}

// Summary counts what happened to the files of one request.
type Summary struct {
	Files  int `json:"files"`
	Scored int `json:"scored"`
	Failed int `json:"failed"`
}
