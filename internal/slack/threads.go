// Package slack rebuilds conversation threads from a standard Slack
// export (one directory per channel, one JSON file per day) and turns
// them into ingestible question/answer records.
package slack

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Message is one Slack message from an export day file.
type Message struct {
	Channel  string `json:"channel"`
	TS       string `json:"ts"`
	Text     string `json:"text"`
	User     string `json:"user"`
	ThreadTS string `json:"thread_ts,omitempty"`
	Subtype  string `json:"subtype,omitempty"`

	replyCount int
}

// tsFloat parses the numeric Slack timestamp. Malformed timestamps
// sort first instead of failing the whole export.
func (m *Message) tsFloat() float64 {
	f, err := strconv.ParseFloat(m.TS, 64)
	if err != nil {
		return 0
	}
	return f
}

// Thread is a reconstructed conversation. Root may be nil when the
// export slice contains replies to a message outside its date range.
type Thread struct {
	Channel  string    `json:"channel"`
	ThreadTS string    `json:"thread_ts"`
	Root     *Message  `json:"root"`
	Replies  []Message `json:"replies"`
}

// exportMessage is the raw shape of one entry in a day file.
type exportMessage struct {
	Type       string `json:"type"`
	TS         string `json:"ts"`
	Text       string `json:"text"`
	User       string `json:"user"`
	BotID      string `json:"bot_id"`
	Username   string `json:"username"`
	ThreadTS   string `json:"thread_ts"`
	Subtype    string `json:"subtype"`
	ReplyCount int    `json:"reply_count"`
}

// LoadExport walks a Slack export directory and returns all messages.
// Channel directories and day files are visited in sorted order.
// Unreadable day files are logged and skipped.
func LoadExport(exportRoot string) ([]Message, error) {
	entries, err := os.ReadDir(exportRoot)
	if err != nil {
		return nil, fmt.Errorf("read export dir: %w", err)
	}

	var channels []string
	for _, e := range entries {
		if e.IsDir() {
			channels = append(channels, e.Name())
		}
	}
	sort.Strings(channels)

	var messages []Message
	for _, channel := range channels {
		dir := filepath.Join(exportRoot, channel)
		files, err := filepath.Glob(filepath.Join(dir, "*.json"))
		if err != nil {
			return nil, fmt.Errorf("glob day files for %s: %w", channel, err)
		}
		sort.Strings(files)

		for _, file := range files {
			msgs, err := readDayFile(file, channel)
			if err != nil {
				slog.Warn("skipping unreadable day file",
					slog.String("path", file),
					slog.String("error", err.Error()))
				continue
			}
			messages = append(messages, msgs...)
		}
	}

	return messages, nil
}

// readDayFile parses one day file into messages.
func readDayFile(path, channel string) ([]Message, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var items []exportMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	messages := make([]Message, 0, len(items))
	for _, item := range items {
		if item.TS == "" {
			continue
		}
		// Non-message events with a subtype and no text are noise
		// (joins, topic changes).
		if item.Type != "message" && item.Subtype != "" && item.Text == "" {
			continue
		}

		user := item.User
		if user == "" {
			user = item.BotID
		}
		if user == "" {
			user = item.Username
		}

		messages = append(messages, Message{
			Channel:    channel,
			TS:         item.TS,
			Text:       item.Text,
			User:       user,
			ThreadTS:   item.ThreadTS,
			Subtype:    item.Subtype,
			replyCount: item.ReplyCount,
		})
	}
	return messages, nil
}

// BuildThreads groups messages into conversation threads.
// Threads spanning multiple day files are stitched back together;
// replies are ordered by numeric timestamp. Standalone messages that
// never started a thread are dropped.
func BuildThreads(messages []Message) []Thread {
	byChannel := make(map[string][]Message)
	for _, m := range messages {
		byChannel[m.Channel] = append(byChannel[m.Channel], m)
	}

	var threads []Thread

	for channel, msgs := range byChannel {
		// Messages that started a thread according to the export.
		roots := make(map[string]Message)
		for _, m := range msgs {
			if m.replyCount > 0 {
				roots[m.TS] = m
			}
		}

		grouped := make(map[string][]Message)
		for _, m := range msgs {
			key := m.ThreadTS
			if key == "" {
				if _, isRoot := roots[m.TS]; isRoot {
					key = m.TS
				} else {
					continue
				}
			}
			grouped[key] = append(grouped[key], m)
		}

		for threadTS, group := range grouped {
			sort.SliceStable(group, func(i, j int) bool {
				return group[i].tsFloat() < group[j].tsFloat()
			})

			var root *Message
			for i := range group {
				if group[i].TS == threadTS {
					root = &group[i]
					break
				}
			}

			var replies []Message
			for _, m := range group {
				if root == nil || m.TS != root.TS {
					replies = append(replies, m)
				}
			}

			threads = append(threads, Thread{
				Channel:  channel,
				ThreadTS: threadTS,
				Root:     root,
				Replies:  replies,
			})
		}
	}

	sort.SliceStable(threads, func(i, j int) bool {
		if threads[i].Channel != threads[j].Channel {
			return threads[i].Channel < threads[j].Channel
		}
		return threadSortTS(threads[i]) < threadSortTS(threads[j])
	})

	return threads
}

// threadSortTS returns the timestamp a thread sorts by: its root, or
// the first reply when the root is missing from the export slice.
func threadSortTS(th Thread) float64 {
	if th.Root != nil {
		return th.Root.tsFloat()
	}
	if len(th.Replies) > 0 {
		return th.Replies[0].tsFloat()
	}
	return 0
}

// RenderThread formats a thread for display or downstream extraction.
func RenderThread(th Thread) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Channel: #%s\nThread: %s\n---\n", th.Channel, th.ThreadTS)
	if th.Root != nil {
		user := th.Root.User
		if user == "" {
			user = "unknown"
		}
		fmt.Fprintf(&b, "[ROOT] %s @ %s:\n%s\n\n", user, th.Root.TS, th.Root.Text)
	} else {
		b.WriteString("[ROOT] (missing in this export slice)\n\n")
	}
	for _, r := range th.Replies {
		user := r.User
		if user == "" {
			user = "unknown"
		}
		fmt.Fprintf(&b, "[REPLY] %s @ %s:\n%s\n\n", user, r.TS, r.Text)
	}
	return b.String()
}
