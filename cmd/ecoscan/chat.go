package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/zen-systems/ecoscan/pkg/task"
)

// chatLoop reads one message per line and keeps the conversation history.
// Failed turns are reported and dropped so the next line starts clean.
func chatLoop(ctx context.Context, a *app, svc *task.Service, viewing string, in io.Reader, out io.Writer) error {
	var history []task.Message
	scanner := bufio.NewScanner(in)

	fmt.Fprint(out, "> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			fmt.Fprint(out, "> ")
			continue
		}

		turn := append(history, task.Message{Role: task.RoleUser, Text: line})
		reply, err := svc.Chat(ctx, turn, viewing)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintln(out, a.userError(err))
			fmt.Fprint(out, "> ")
			continue
		}

		history = append(turn, task.Message{Role: task.RoleModel, Text: reply})
		fmt.Fprintln(out, reply)
		fmt.Fprint(out, "> ")
	}
	fmt.Fprintln(out)
	return scanner.Err()
}
