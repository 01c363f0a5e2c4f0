package eval

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// LoadGroundTruth reads a ground-truth file mapping document IDs to
// generated paraphrase questions:
//
//	{"<doc-id>": ["question 1", "question 2", ...], ...}
//
// Files produced by LLM generation sometimes carry the question list as
// a JSON-encoded string rather than an array; both forms are accepted.
// The result is flattened into one labeled query per question, ordered
// by document ID for determinism.
func LoadGroundTruth(path string) ([]LabeledQuery, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ground truth: %w", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse ground truth %s: %w", path, err)
	}

	ids := make([]string, 0, len(raw))
	for id := range raw {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var queries []LabeledQuery
	for _, id := range ids {
		questions, err := decodeQuestionList(raw[id])
		if err != nil {
			return nil, fmt.Errorf("ground truth entry %s: %w", id, err)
		}
		for _, q := range questions {
			q = strings.TrimSpace(q)
			if q == "" {
				continue
			}
			queries = append(queries, LabeledQuery{Query: q, ExpectedID: id})
		}
	}

	return queries, nil
}

// decodeQuestionList handles both plain arrays and double-encoded
// string values.
func decodeQuestionList(raw json.RawMessage) ([]string, error) {
	var questions []string
	if err := json.Unmarshal(raw, &questions); err == nil {
		return questions, nil
	}

	var encoded string
	if err := json.Unmarshal(raw, &encoded); err != nil {
		return nil, fmt.Errorf("value is neither an array nor a string")
	}
	if err := json.Unmarshal([]byte(encoded), &questions); err != nil {
		return nil, fmt.Errorf("double-encoded value is not a question array: %w", err)
	}
	return questions, nil
}
