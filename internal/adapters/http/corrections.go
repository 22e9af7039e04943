package httpadapter

import (
	"net/http"
	"strings"

	"golang.org/x/net/html"

	"gradekey/internal/domain"
)

func (s *Server) postCorrection(w http.ResponseWriter, r *http.Request) error {
	examID, err := pathParam(r, "examId")
	if err != nil {
		return err
	}
	var in domain.RecordCorrectionInput
	if err := decode(r, &in); err != nil {
		return err
	}
	in.ExamID = examID
	if strings.TrimSpace(in.CandidateID) == "" {
		return badRequest("candidateId is required")
	}
	for _, ts := range in.TaskScores {
		if ts.TaskID == "" {
			return badRequest("every task score needs a taskId")
		}
	}
	in.Comments = sanitizeComments(in.Comments)

	entry, err := s.corrections.Execute(r.Context(), in)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, entry)
	return nil
}

func (s *Server) getCorrections(w http.ResponseWriter, r *http.Request) error {
	exam, err := s.findExam(r)
	if err != nil {
		return err
	}
	entries, err := s.entries.ListByExam(r.Context(), exam.ID)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, entries)
	return nil
}

// sanitizeComments strips markup from submitted comments and drops the ones
// left empty.
func sanitizeComments(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, c := range in {
		if text := stripMarkup(c); text != "" {
			out = append(out, text)
		}
	}
	return out
}

// stripMarkup keeps the text content of s. Script and style bodies are dropped.
func stripMarkup(s string) string {
	z := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.TrimSpace(b.String())
		case html.StartTagToken:
			if name, _ := z.TagName(); isRawText(name) {
				skip++
			}
		case html.EndTagToken:
			if name, _ := z.TagName(); isRawText(name) && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		}
	}
}

func isRawText(tag []byte) bool {
	switch string(tag) {
	case "script", "style":
		return true
	}
	return false
}
