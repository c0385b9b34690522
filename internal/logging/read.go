package logging

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// LogEntry represents a parsed log entry with all structured fields.
type LogEntry struct {
	Timestamp time.Time      `json:"time"`
	Level     string         `json:"level"`
	Message   string         `json:"msg"`
	RunID     string         `json:"run_id,omitempty"`
	TaskID    string         `json:"task_id,omitempty"`
	Phase     int            `json:"phase"`
	GateID    string         `json:"gate_id,omitempty"`
	Attrs     map[string]any `json:"attrs,omitempty"`
}

// LogFilter defines criteria for selecting log entries.
// Criteria are combined with AND logic.
type LogFilter struct {
	// Level keeps entries at or above this level (DEBUG < INFO < WARN < ERROR).
	// Empty string means no level filtering.
	Level string

	// StartTime keeps entries at or after this time.
	StartTime time.Time

	// EndTime keeps entries at or before this time.
	EndTime time.Time

	// TaskID keeps entries from this task. Empty string means no filtering.
	TaskID string

	// Phase keeps entries from this phase. A negative value means no filtering.
	Phase int

	// GateID keeps entries from this gate. Empty string means no filtering.
	GateID string

	// MessageContains keeps entries whose message contains this substring.
	MessageContains string
}

// NewLogFilter returns a LogFilter that matches every entry.
func NewLogFilter() LogFilter {
	return LogFilter{Phase: -1}
}

// levelOrder defines the ordering of log levels for filtering.
var levelOrder = map[string]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// ReadRunLogs reads and parses all log entries from a run directory.
// It parses each line of the gantry.log file (and any rotated backups)
// as a JSON log entry, skipping lines that fail to parse so that a
// truncated write does not hide the rest of the log.
// Entries are returned sorted by timestamp in ascending order.
func ReadRunLogs(runDir string) ([]LogEntry, error) {
	logPath := filepath.Join(runDir, LogFileName)

	paths := []string{logPath}
	// Rotated backups hold older entries; read them too.
	matches, _ := filepath.Glob(logPath + ".*")
	paths = append(paths, matches...)

	var entries []LogEntry
	found := false
	for _, p := range paths {
		fileEntries, err := readLogFile(p)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		found = true
		entries = append(entries, fileEntries...)
	}

	if !found {
		return nil, fmt.Errorf("no log file found in run directory %s", runDir)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})

	return entries, nil
}

// readLogFile parses one JSON-lines log file.
func readLogFile(path string) ([]LogEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	var entries []LogEntry
	scanner := bufio.NewScanner(file)

	// Increase buffer size for potentially long log lines
	const maxScanTokenSize = 1024 * 1024 // 1MB
	buf := make([]byte, maxScanTokenSize)
	scanner.Buffer(buf, maxScanTokenSize)

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		entry, err := parseLogEntry(line)
		if err != nil {
			continue
		}

		entries = append(entries, entry)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading log file: %w", err)
	}

	return entries, nil
}

// parseLogEntry parses a single JSON log line into a LogEntry.
func parseLogEntry(line string) (LogEntry, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return LogEntry{}, fmt.Errorf("invalid JSON: %w", err)
	}

	entry := LogEntry{
		Phase: -1,
		Attrs: make(map[string]any),
	}

	if timeStr, ok := raw["time"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, timeStr); err == nil {
			entry.Timestamp = t
		}
	}

	if level, ok := raw["level"].(string); ok {
		entry.Level = level
	}

	if msg, ok := raw["msg"].(string); ok {
		entry.Message = msg
	}

	if runID, ok := raw["run_id"].(string); ok {
		entry.RunID = runID
	}

	if taskID, ok := raw["task_id"].(string); ok {
		entry.TaskID = taskID
	}

	// JSON numbers decode as float64
	if phase, ok := raw["phase"].(float64); ok {
		entry.Phase = int(phase)
	}

	if gateID, ok := raw["gate_id"].(string); ok {
		entry.GateID = gateID
	}

	standardFields := map[string]bool{
		"time":    true,
		"level":   true,
		"msg":     true,
		"run_id":  true,
		"task_id": true,
		"phase":   true,
		"gate_id": true,
	}

	for k, v := range raw {
		if !standardFields[k] {
			entry.Attrs[k] = v
		}
	}

	return entry, nil
}

// FilterLogs filters log entries based on the provided filter criteria.
func FilterLogs(entries []LogEntry, filter LogFilter) []LogEntry {
	var filtered []LogEntry
	for _, entry := range entries {
		if matchesFilter(entry, filter) {
			filtered = append(filtered, entry)
		}
	}
	return filtered
}

// matchesFilter checks if an entry matches all filter criteria.
func matchesFilter(entry LogEntry, filter LogFilter) bool {
	if filter.Level != "" {
		filterLevelOrder, filterOk := levelOrder[strings.ToUpper(filter.Level)]
		entryLevelOrder, entryOk := levelOrder[entry.Level]
		if filterOk && entryOk && entryLevelOrder < filterLevelOrder {
			return false
		}
	}

	if !filter.StartTime.IsZero() && entry.Timestamp.Before(filter.StartTime) {
		return false
	}
	if !filter.EndTime.IsZero() && entry.Timestamp.After(filter.EndTime) {
		return false
	}

	if filter.TaskID != "" && entry.TaskID != filter.TaskID {
		return false
	}

	if filter.Phase >= 0 && entry.Phase != filter.Phase {
		return false
	}

	if filter.GateID != "" && entry.GateID != filter.GateID {
		return false
	}

	if filter.MessageContains != "" && !strings.Contains(entry.Message, filter.MessageContains) {
		return false
	}

	return true
}

// FormatEntry renders a log entry as a single human-readable line.
func FormatEntry(entry LogEntry) string {
	var parts []string

	ts := entry.Timestamp.Format("2006-01-02 15:04:05.000")
	parts = append(parts, fmt.Sprintf("[%s]", ts))
	parts = append(parts, entry.Level, "-", entry.Message)

	var context []string
	if entry.TaskID != "" {
		context = append(context, fmt.Sprintf("task=%s", entry.TaskID))
	}
	if entry.Phase >= 0 {
		context = append(context, fmt.Sprintf("phase=%d", entry.Phase))
	}
	if entry.GateID != "" {
		context = append(context, fmt.Sprintf("gate=%s", entry.GateID))
	}
	if len(context) > 0 {
		parts = append(parts, fmt.Sprintf("(%s)", strings.Join(context, ", ")))
	}

	if len(entry.Attrs) > 0 {
		attrsJSON, _ := json.Marshal(entry.Attrs)
		parts = append(parts, string(attrsJSON))
	}

	return strings.Join(parts, " ")
}
