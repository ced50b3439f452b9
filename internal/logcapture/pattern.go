// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package logcapture

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/mia-platform/logkit/internal/logger"
)

const (
	// DefaultPattern renders each record as "[LEVEL] message" followed by a newline.
	DefaultPattern = "[%p] %m%n"

	defaultDateLayout = "2006-01-02 15:04:05.000"

	// maxFieldWidth bounds the padding and truncation widths of a conversion.
	maxFieldWidth = 1024
)

// record is a single log call observed by the sink.
type record struct {
	time  time.Time
	name  string
	level logger.Level
	msg   string
	args  []any
}

type converter func(rec *record) string

var converters = map[string]func(option string) converter{
	"p":       levelConverter,
	"le":      levelConverter,
	"level":   levelConverter,
	"m":       messageConverter,
	"msg":     messageConverter,
	"message": messageConverter,
	"n":       newlineConverter,
	"c":       loggerConverter,
	"lo":      loggerConverter,
	"logger":  loggerConverter,
	"d":       dateConverter,
	"date":    dateConverter,
	"kv":      keyValueConverter,
}

// segment is either literal text or a conversion with its format modifiers.
type segment struct {
	literal string
	convert converter

	leftAlign bool
	minWidth  int
	maxWidth  int
	keepStart bool
}

// layout renders records following a logback style pattern.
type layout []segment

// parseLayout compiles pattern; errors wrap ErrInvalidPattern.
func parseLayout(pattern string) (layout, error) {
	var segments layout
	var literal strings.Builder

	flushLiteral := func() {
		if literal.Len() > 0 {
			segments = append(segments, segment{literal: literal.String()})
			literal.Reset()
		}
	}

	for index := 0; index < len(pattern); {
		char := pattern[index]
		if char != '%' {
			literal.WriteByte(char)
			index++
			continue
		}

		index++
		if index >= len(pattern) {
			return nil, fmt.Errorf("%w: dangling %% at end of %q", ErrInvalidPattern, pattern)
		}
		if pattern[index] == '%' {
			literal.WriteByte('%')
			index++
			continue
		}

		seg, next, err := parseConversion(pattern, index)
		if err != nil {
			return nil, err
		}

		flushLiteral()
		segments = append(segments, seg)
		index = next
	}

	flushLiteral()
	return segments, nil
}

// parseConversion reads "[-][min][.[-]max]word[{option}]" starting at index.
func parseConversion(pattern string, index int) (segment, int, error) {
	seg := segment{}

	if pattern[index] == '-' {
		seg.leftAlign = true
		index++
	}

	start := index
	for index < len(pattern) && isDigit(pattern[index]) {
		index++
	}
	if index > start {
		width, err := parseWidth(pattern, start, index)
		if err != nil {
			return segment{}, 0, err
		}
		seg.minWidth = width
	}

	if index < len(pattern) && pattern[index] == '.' {
		index++
		if index < len(pattern) && pattern[index] == '-' {
			seg.keepStart = true
			index++
		}

		start = index
		for index < len(pattern) && isDigit(pattern[index]) {
			index++
		}
		if index == start {
			return segment{}, 0, fmt.Errorf("%w: missing truncation width in %q", ErrInvalidPattern, pattern)
		}
		width, err := parseWidth(pattern, start, index)
		if err != nil {
			return segment{}, 0, err
		}
		seg.maxWidth = width
	}

	start = index
	for index < len(pattern) && isLetter(pattern[index]) {
		index++
	}
	word := pattern[start:index]
	if word == "" {
		return segment{}, 0, fmt.Errorf("%w: missing conversion word in %q", ErrInvalidPattern, pattern)
	}

	option := ""
	if index < len(pattern) && pattern[index] == '{' {
		end := strings.IndexByte(pattern[index:], '}')
		if end < 0 {
			return segment{}, 0, fmt.Errorf("%w: unterminated option for %%%s", ErrInvalidPattern, word)
		}
		option = pattern[index+1 : index+end]
		index += end + 1
	}

	build, ok := converters[word]
	if !ok {
		return segment{}, 0, fmt.Errorf("%w: unknown conversion word %%%s", ErrInvalidPattern, word)
	}

	seg.convert = build(option)
	return seg, index, nil
}

func parseWidth(pattern string, start, end int) (int, error) {
	width, err := strconv.Atoi(pattern[start:end])
	if err != nil || width > maxFieldWidth {
		return 0, fmt.Errorf("%w: width %s exceeds %d in %q", ErrInvalidPattern, pattern[start:end], maxFieldWidth, pattern)
	}
	return width, nil
}

func (l layout) format(rec *record) string {
	var builder strings.Builder
	for _, seg := range l {
		if seg.convert == nil {
			builder.WriteString(seg.literal)
			continue
		}
		builder.WriteString(seg.apply(seg.convert(rec)))
	}
	return builder.String()
}

func (s segment) apply(value string) string {
	length := utf8.RuneCountInString(value)

	if s.maxWidth > 0 && length > s.maxWidth {
		runes := []rune(value)
		if s.keepStart {
			value = string(runes[:s.maxWidth])
		} else {
			value = string(runes[length-s.maxWidth:])
		}
		length = s.maxWidth
	}

	if length >= s.minWidth {
		return value
	}

	padding := strings.Repeat(" ", s.minWidth-length)
	if s.leftAlign {
		return value + padding
	}
	return padding + value
}

func levelConverter(string) converter {
	return func(rec *record) string { return rec.level.String() }
}

func messageConverter(string) converter {
	return func(rec *record) string { return rec.msg }
}

func newlineConverter(string) converter {
	return func(*record) string { return "\n" }
}

func loggerConverter(string) converter {
	return func(rec *record) string {
		if rec.name == "" {
			return logger.RootLoggerName
		}
		return rec.name
	}
}

func dateConverter(option string) converter {
	timeLayout := option
	if timeLayout == "" {
		timeLayout = defaultDateLayout
	}
	return func(rec *record) string { return rec.time.Format(timeLayout) }
}

func keyValueConverter(string) converter {
	return func(rec *record) string {
		pairs := make([]string, 0, (len(rec.args)+1)/2)
		for index := 0; index < len(rec.args); index += 2 {
			key := fmt.Sprint(rec.args[index])
			if index+1 >= len(rec.args) {
				pairs = append(pairs, "EXTRA_VALUE_AT_END="+key)
				break
			}
			pairs = append(pairs, key+"="+fmt.Sprint(rec.args[index+1]))
		}
		return strings.Join(pairs, " ")
	}
}

func isDigit(char byte) bool {
	return char >= '0' && char <= '9'
}

func isLetter(char byte) bool {
	return char < utf8.RuneSelf && unicode.IsLetter(rune(char))
}
