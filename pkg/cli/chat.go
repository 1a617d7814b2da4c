package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/inkwell-lab/inkwell/pkg/cli/config"
	"github.com/inkwell-lab/inkwell/pkg/domain/types"
	"github.com/inkwell-lab/inkwell/pkg/usecase"
)

var (
	promptColor = color.New(color.FgCyan, color.Bold)
	replyColor  = color.New(color.FgGreen)
	metaColor   = color.New(color.FgHiBlack)
	errorColor  = color.New(color.FgRed)
)

func cmdChat() *cli.Command {
	var userID string
	var geminiCfg config.Gemini
	var repoCfg config.Repository
	var retrievalCfg config.Retrieval
	var personaCfg config.Persona

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "user",
			Usage:       "User ID for the chat session",
			Value:       "local",
			Sources:     cli.EnvVars("INKWELL_USER"),
			Destination: &userID,
		},
	}
	flags = append(flags, geminiCfg.Flags()...)
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, retrievalCfg.Flags()...)
	flags = append(flags, personaCfg.Flags()...)

	return &cli.Command{
		Name:  "chat",
		Usage: "Interactive chat session in the terminal",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			uc, cleanup, err := buildUseCases(ctx, &geminiCfg, &repoCfg, &retrievalCfg, &personaCfg)
			if err != nil {
				return err
			}
			defer cleanup()
			defer uc.Tasks().Wait()
			defer uc.CloseConversations()

			conv := uc.Conversation(types.NewConversationID(), types.UserID(userID))

			metaColor.Println("Type a reflection, or /quit to exit.")

			scanner := bufio.NewScanner(os.Stdin)
			for {
				promptColor.Print("you> ")
				if !scanner.Scan() {
					break
				}
				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					continue
				}
				if line == "/quit" || line == "/exit" {
					break
				}

				if err := runChatTurn(ctx, conv, line); err != nil {
					errorColor.Println(err.Error())
				}
			}

			if err := scanner.Err(); err != nil {
				return goerr.Wrap(err, "failed to read input")
			}
			return nil
		},
	}
}

// runChatTurn streams one reply to the terminal. Tokens print as they
// arrive; the settled state decides the trailing status line.
func runChatTurn(ctx context.Context, conv *usecase.Conversation, line string) error {
	tokens := make(chan string, 32)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for token := range tokens {
			replyColor.Print(token)
		}
		fmt.Println()
	}()

	result, err := conv.Submit(ctx, line, tokens)
	close(tokens)
	wg.Wait()

	if err != nil {
		if result != nil && result.UserMessage != nil && result.UserMessage.FailureDetail != "" {
			return goerr.Wrap(err, result.UserMessage.FailureDetail)
		}
		return err
	}

	if result.Intent != nil {
		metaColor.Printf("[%s %.2f]", result.Intent.RawLabel, result.Intent.Confidence)
		if result.Outcome != nil && result.Outcome.Status != usecase.ActionStatusNone {
			metaColor.Printf(" %s=%s", result.Outcome.Action, result.Outcome.Status)
		}
		fmt.Println()
	}
	return nil
}
