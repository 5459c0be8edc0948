// Package keysource obtains credential lists from helper commands and files.
//
// Output is either JSON (an array of strings or an object with a "keys"
// array) or plain text with one key per line. In plain text, blank lines and
// lines starting with # are ignored.
package keysource

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	shellquote "github.com/kballard/go-shellquote"
	"github.com/tidwall/gjson"
)

// ErrNoKeys is returned when a source yields no credentials.
var ErrNoKeys = errors.New("no keys found")

// Run executes command without a shell and parses its stdout.
func Run(ctx context.Context, command string) ([]string, error) {
	args, err := shellquote.Split(command)
	if err != nil {
		return nil, fmt.Errorf("invalid keys command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("keys command is empty")
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("keys command %s failed: %w: %s", shellquote.Join(args[0]), err, msg)
		}
		return nil, fmt.Errorf("keys command %s failed: %w", shellquote.Join(args[0]), err)
	}

	return Parse(stdout.Bytes())
}

// ReadFile parses the keys in path.
func ReadFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keys file: %w", err)
	}
	return Parse(data)
}

// Parse extracts credentials from JSON or line-oriented text.
func Parse(data []byte) ([]string, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, ErrNoKeys
	}

	var keys []string
	var err error
	switch data[0] {
	case '[', '{':
		keys, err = parseJSON(data)
	default:
		keys, err = parseLines(data)
	}
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, ErrNoKeys
	}
	return keys, nil
}

func parseJSON(data []byte) ([]string, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid JSON key list")
	}

	list := gjson.ParseBytes(data)
	if list.IsObject() {
		list = list.Get("keys")
	}
	if !list.IsArray() {
		return nil, fmt.Errorf(`JSON key list must be an array or an object with a "keys" array`)
	}

	var keys []string
	for i, v := range list.Array() {
		if v.Type != gjson.String {
			return nil, fmt.Errorf("key %d is not a string", i)
		}
		if k := strings.TrimSpace(v.String()); k != "" {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func parseLines(data []byte) ([]string, error) {
	var keys []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		keys = append(keys, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read key list: %w", err)
	}
	return keys, nil
}
