// Package cli is an interactive typing demo for trying the engine by hand.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/bastiangx/tripserve/internal/utils"
	"github.com/bastiangx/tripserve/pkg/engine"
	"github.com/bastiangx/tripserve/pkg/suggest"
)

// InputHandler reads lines from the user and shows what the engine would
// suggest next. Typing a number picks that suggestion and appends it to the
// current query, so a whole search can be built from suggestions alone.
type InputHandler struct {
	service   *engine.Service
	limit     int
	showGhost bool
	in        io.Reader
	out       io.Writer

	buffer string
	last   []suggest.Suggestion

	ghost, index, label, dim lipgloss.Style
}

// NewInputHandler handles initialization of the InputHandler with basic parameters
func NewInputHandler(service *engine.Service, limit int, showGhost bool, in io.Reader, out io.Writer) *InputHandler {
	r := lipgloss.NewRenderer(out)
	return &InputHandler{
		service:   service,
		limit:     limit,
		showGhost: showGhost,
		in:        in,
		out:       out,
		ghost:     r.NewStyle().Faint(true),
		index:     r.NewStyle().Foreground(lipgloss.Color("75")),
		label:     r.NewStyle().Bold(true),
		dim:       r.NewStyle().Italic(true).Foreground(lipgloss.Color("244")),
	}
}

// Start runs the loop until input ends or the user types :q.
//
//	text      replaces the query
//	N         appends suggestion N
//	:clear    empties the query
func (h *InputHandler) Start(ctx context.Context) error {
	fmt.Fprintln(h.out, h.label.Render("tripserve CLI"))
	fmt.Fprintln(h.out, "type a travel query and press Enter, a number to pick a suggestion, :clear to reset, :q to quit")
	h.show(ctx)

	reader := bufio.NewReader(h.in)
	for {
		fmt.Fprint(h.out, "> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		line = strings.TrimRight(line, "\r\n")

		switch trimmed := strings.TrimSpace(line); {
		case trimmed == ":q":
			return nil
		case trimmed == ":clear":
			h.buffer = ""
		case trimmed == "":
		default:
			if n, err := strconv.Atoi(trimmed); err == nil {
				if !h.pick(n) {
					continue
				}
			} else {
				h.buffer = line
			}
		}
		h.show(ctx)
	}
}

// pick appends suggestion n (1-based) to the buffer.
func (h *InputHandler) pick(n int) bool {
	if n < 1 || n > len(h.last) {
		log.Warnf("No suggestion number %d", n)
		return false
	}
	s := h.last[n-1]
	if !s.Selectable {
		log.Warnf("%q is a hint, type the value instead", s.Text)
		return false
	}
	h.buffer = Apply(h.buffer, s.Text)
	return true
}

func (h *InputHandler) show(ctx context.Context) {
	start := time.Now()
	res := h.service.Complete(ctx, engine.Request{Query: h.buffer, Max: h.limit, Placeholder: true})
	log.Debugf("Took %v for %q", time.Since(start), h.buffer)

	h.last = res.Suggestions
	intent := string(res.Intent)
	if intent == "" {
		intent = "-"
	}
	fmt.Fprintf(h.out, "%s %s  %s %s  %s %s (%.2f)\n",
		h.label.Render("intent:"), intent,
		h.label.Render("next:"), res.NextSlot,
		h.label.Render("source:"), res.Source, res.Confidence)

	if len(res.Suggestions) == 0 {
		fmt.Fprintln(h.out, h.dim.Render("no suggestions"))
	}
	for i, s := range res.Suggestions {
		text := s.Text
		if s.IsPlaceholder {
			text = h.dim.Render("<" + text + ">")
		}
		fmt.Fprintf(h.out, "%s %s\n", h.index.Render(fmt.Sprintf("%2d.", i+1)), text)
	}

	if h.showGhost {
		if g := Ghost(h.buffer, res.Suggestions); g != "" {
			fmt.Fprintf(h.out, "%s%s\n", h.buffer, h.ghost.Render(g))
		}
	}
}

// Ghost returns the text the first selectable suggestion would add to buffer.
func Ghost(buffer string, suggestions []suggest.Suggestion) string {
	for _, s := range suggestions {
		if !s.Selectable {
			continue
		}
		applied := Apply(buffer, s.Text)
		if len(applied) >= len(buffer) && strings.EqualFold(applied[:len(buffer)], buffer) {
			return applied[len(buffer):]
		}
		return ""
	}
	return ""
}

// Apply appends choice to buffer. A partly typed word at the end of the
// buffer, or up to three of them ("new d"), is completed instead when choice
// starts with it.
func Apply(buffer, choice string) string {
	if buffer == "" {
		return choice
	}
	if last := rune(buffer[len(buffer)-1]); utils.IsSeparator(last) {
		return buffer + choice
	}
	if utils.LastWord(buffer) != "" {
		words := strings.Fields(buffer)
		lowerChoice := strings.ToLower(choice)
		for n := min(3, len(words)); n >= 1; n-- {
			tail := strings.Join(words[len(words)-n:], " ")
			if strings.HasPrefix(lowerChoice, strings.ToLower(tail)) && strings.HasSuffix(buffer, tail) {
				return buffer[:len(buffer)-len(tail)] + choice
			}
		}
	}
	return strings.TrimRight(buffer, " \t") + " " + choice
}
