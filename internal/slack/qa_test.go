package slack

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractQAs_RootAndFirstForeignReply(t *testing.T) {
	root := Message{Channel: "c", TS: "1.0", User: "U1", Text: "How do I install Kafka?"}
	th := Thread{
		Channel:  "c",
		ThreadTS: "1.0",
		Root:     &root,
		Replies: []Message{
			{TS: "1.1", User: "U1", Text: "bump"},           // asker follow-up, not an answer
			{TS: "1.2", User: "U2", Text: "   "},            // empty reply
			{TS: "1.3", User: "U3", Text: "Use the tarball."},
			{TS: "1.4", User: "U4", Text: "Or use docker."},
		},
	}

	rec := ExtractQAs(th)
	require.NotNil(t, rec)
	require.Len(t, rec.QAs, 1)

	qa := rec.QAs[0]
	assert.Equal(t, "U1", qa.AskedBy)
	assert.Equal(t, "U3", qa.AnsweredBy)
	assert.Equal(t, "How do I install Kafka?", qa.Question)
	assert.Equal(t, "Use the tarball.", qa.Answer)
}

func TestExtractQAs_RejectsUnanswerableThreads(t *testing.T) {
	root := Message{TS: "1.0", User: "U1", Text: "anyone?"}

	assert.Nil(t, ExtractQAs(Thread{ThreadTS: "1.0"}), "missing root")
	assert.Nil(t, ExtractQAs(Thread{ThreadTS: "1.0", Root: &root}), "no replies")
	assert.Nil(t, ExtractQAs(Thread{
		ThreadTS: "1.0",
		Root:     &root,
		Replies:  []Message{{TS: "1.1", User: "U1", Text: "self reply"}},
	}), "only self-replies")
}

func TestDocumentID_DeterministicAndDistinct(t *testing.T) {
	a := DocumentID("course-help", "1700000000.000100", "How do I install Kafka?")
	b := DocumentID("course-help", "1700000000.000100", "How do I install Kafka?")
	c := DocumentID("course-help", "1700000000.000100", "Where is the zoom link?")

	assert.Equal(t, a, b, "same inputs must derive the same ID")
	assert.NotEqual(t, a, c)

	// Valid UUID shape
	_, err := uuid.Parse(a)
	assert.NoError(t, err)
}

func TestFlattenToDocuments(t *testing.T) {
	records := []ThreadRecord{
		{
			Channel:  "course-help",
			ThreadTS: "1.0",
			QAs: []QA{
				{AskedBy: "U1", AnsweredBy: "U2", Question: "Q1?", Answer: "A1."},
				{AskedBy: "U3", AnsweredBy: "U4", Question: "Q2?", Answer: "A2."},
				{Question: "   ", Answer: "orphan answer"},
			},
		},
	}

	docs := FlattenToDocuments(records)
	require.Len(t, docs, 2, "blank questions are dropped")

	assert.Equal(t, "course-help", docs[0].Channel)
	assert.Equal(t, "Q1?", docs[0].Question)
	assert.Equal(t, DocumentID("course-help", "1.0", "Q1?"), docs[0].ID)
	assert.NotEqual(t, docs[0].ID, docs[1].ID)
	assert.Nil(t, docs[0].Dense, "vectors are the pipeline's job")
}

func TestThreadRecords_SaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "threads.json")
	records := []ThreadRecord{
		{Channel: "c", ThreadTS: "1.0", QAs: []QA{{Question: "Q?", Answer: "A."}}},
	}

	require.NoError(t, SaveThreadRecords(path, records))

	loaded, err := LoadThreadRecords(path)
	require.NoError(t, err)
	assert.Equal(t, records, loaded)
}
