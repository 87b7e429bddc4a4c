package sloc

import (
	"bytes"
	"errors"
)

// ErrUnterminatedComment is the parse-failure signal for a file whose block
// comment is opened but never closed. It is distinct from "file unreadable":
// the file was read fine, its contents could not be analysed.
var ErrUnterminatedComment = errors.New("unterminated block comment")

var (
	lineCommentToken = []byte("//")
	blockOpenToken   = []byte("/*")
	blockCloseToken  = []byte("*/")
)

// StripComments removes C/C++ style comments from src and returns the
// stripped text. Line comments are cut to end of line (the newline stays);
// block comments are removed entirely, inner newlines included, so a
// comment spanning k lines collapses them into whatever text surrounds it.
// Block comments do not nest. Line comments are stripped first, matching
// the original tool: a block-comment close hidden behind // on the same
// line therefore reads as unterminated.
//
// No tokenizer runs before this, so comment markers inside string literals
// are treated as comments. That is a documented limit of the tool, not a
// bug to fix here.
func StripComments(src []byte) ([]byte, error) {
	return stripBlockComments(stripLineComments(src))
}

func stripLineComments(src []byte) []byte {
	first := bytes.Index(src, lineCommentToken)
	if first < 0 {
		return src
	}

	out := make([]byte, 0, len(src))
	for {
		out = append(out, src[:first]...)
		src = src[first:]
		nl := bytes.IndexByte(src, '\n')
		if nl < 0 {
			return out
		}
		src = src[nl:] // keep the newline
		first = bytes.Index(src, lineCommentToken)
		if first < 0 {
			return append(out, src...)
		}
	}
}

func stripBlockComments(src []byte) ([]byte, error) {
	open := bytes.Index(src, blockOpenToken)
	if open < 0 {
		return src, nil
	}

	out := make([]byte, 0, len(src))
	for {
		out = append(out, src[:open]...)
		src = src[open+len(blockOpenToken):]
		closing := bytes.Index(src, blockCloseToken)
		if closing < 0 {
			return nil, ErrUnterminatedComment
		}
		src = src[closing+len(blockCloseToken):]
		open = bytes.Index(src, blockOpenToken)
		if open < 0 {
			return append(out, src...), nil
		}
	}
}

// CountLines returns the SLOC count of comment-stripped text: the number of
// lines with at least one non-whitespace character. A line holding only a
// lone brace or semicolon counts; changing that would change every reported
// total, so the policy is deliberate. Empty input counts zero.
func CountLines(src []byte) int {
	count := 0
	for len(src) > 0 {
		line := src
		nl := bytes.IndexByte(src, '\n')
		if nl < 0 {
			src = nil
		} else {
			line = src[:nl]
			src = src[nl+1:]
		}
		if len(bytes.TrimSpace(line)) > 0 {
			count++
		}
	}
	return count
}
