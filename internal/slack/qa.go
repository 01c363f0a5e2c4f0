package slack

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/sfarag/slackfaq/internal/store"
)

// QA is one question/answer pair extracted from a thread.
type QA struct {
	AskedBy    string `json:"asked_by"`
	AnsweredBy string `json:"answered_by"`
	Question   string `json:"question"`
	Answer     string `json:"answer"`
}

// ThreadRecord is the ingestion input format: one thread with its
// extracted Q&A pairs.
type ThreadRecord struct {
	Channel  string `json:"channel"`
	ThreadTS string `json:"thread_ts"`
	QAs      []QA   `json:"qas"`
}

// LoadThreadRecords reads a JSON array of thread records.
func LoadThreadRecords(path string) ([]ThreadRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read thread records: %w", err)
	}

	var records []ThreadRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse thread records %s: %w", path, err)
	}
	return records, nil
}

// SaveThreadRecords writes thread records as an indented JSON array.
func SaveThreadRecords(path string, records []ThreadRecord) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode thread records: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write thread records: %w", err)
	}
	return nil
}

// ExtractQAs derives Q&A pairs from a reconstructed thread without an
// LLM in the loop: the root message is the question and the first
// substantive reply from a different user is the answer. Threads with
// no root, no question text, or no qualifying answer yield no pairs.
func ExtractQAs(th Thread) *ThreadRecord {
	if th.Root == nil {
		return nil
	}

	question := strings.TrimSpace(th.Root.Text)
	if question == "" {
		return nil
	}

	var answer *Message
	for i := range th.Replies {
		r := &th.Replies[i]
		if r.User == th.Root.User {
			continue
		}
		if strings.TrimSpace(r.Text) == "" {
			continue
		}
		answer = r
		break
	}
	if answer == nil {
		return nil
	}

	return &ThreadRecord{
		Channel:  th.Channel,
		ThreadTS: th.ThreadTS,
		QAs: []QA{{
			AskedBy:    th.Root.User,
			AnsweredBy: answer.User,
			Question:   question,
			Answer:     strings.TrimSpace(answer.Text),
		}},
	}
}

// ExtractAllQAs runs ExtractQAs over every thread, dropping threads
// that produced no pairs.
func ExtractAllQAs(threads []Thread) []ThreadRecord {
	var records []ThreadRecord
	for _, th := range threads {
		if rec := ExtractQAs(th); rec != nil {
			records = append(records, *rec)
		}
	}
	return records
}

// DocumentID derives a deterministic UUIDv5 for a Q&A pair from its
// channel, thread timestamp, and question text. Re-ingesting the same
// pair always produces the same ID, which is what makes skip-existing
// ingestion idempotent.
func DocumentID(channel, threadTS, question string) string {
	name := channel + "|" + threadTS + "|" + question
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}

// FlattenToDocuments expands thread records into store documents,
// one per Q&A pair. Vectors are left unset for the ingestion pipeline
// to populate. Pairs with an empty question are skipped.
func FlattenToDocuments(records []ThreadRecord) []*store.Document {
	var docs []*store.Document
	for _, rec := range records {
		for _, qa := range rec.QAs {
			question := strings.TrimSpace(qa.Question)
			if question == "" {
				continue
			}
			docs = append(docs, &store.Document{
				ID:         DocumentID(rec.Channel, rec.ThreadTS, question),
				Channel:    rec.Channel,
				ThreadTS:   rec.ThreadTS,
				AskedBy:    qa.AskedBy,
				AnsweredBy: qa.AnsweredBy,
				Question:   question,
				Answer:     strings.TrimSpace(qa.Answer),
			})
		}
	}
	return docs
}
