// Package main provides an interactive terminal client for the chat relay.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AyeshaKanwal90/ChatAI/internal/adapter/chatclient"
	"github.com/AyeshaKanwal90/ChatAI/internal/adapter/ratings"
	"github.com/AyeshaKanwal90/ChatAI/internal/config"
	"github.com/AyeshaKanwal90/ChatAI/internal/domain"
	"github.com/AyeshaKanwal90/ChatAI/internal/logger"
	"github.com/AyeshaKanwal90/ChatAI/internal/session"
)

const help = `Type a message and press Enter to send.
Commands:
  /new                 start a new conversation
  /list                list conversations
  /find <text>         list conversations whose title contains text
  /open <n>            open conversation n from the last list
  /rename <n> <title>  rename conversation n
  /delete <n>          delete conversation n
  /clear               delete every conversation
  /regen               regenerate the last reply
  /rate liked|disliked rate the last reply
  /quit                exit`

func main() {
	var relayURL, ratingsPath string
	rootCmd := &cobra.Command{
		Use:   "chatcli",
		Short: "Interactive chat client for the chat relay",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			if relayURL == "" {
				relayURL = cfg.RelayURL
			}
			log, err := logger.New(cfg.LogMode, "warn")
			if err != nil {
				return err
			}
			defer log.Sync()

			opts := []session.Option{
				session.WithLogger(log),
				session.WithTitleMaxChars(cfg.TitleMaxChars),
				session.WithFragmentListener(func(_, fragment string) { fmt.Print(fragment) }),
			}
			store, err := ratings.Open(ratingsPath)
			if err != nil {
				log.Warn("ratings will not be kept", "path", ratingsPath, "error", err)
			} else {
				defer store.Close()
				opts = append(opts, session.WithRatingStore(store))
			}

			c := &cli{manager: session.NewManager(chatclient.NewClient(relayURL), opts...)}
			return c.run(cmd.Context())
		},
	}
	rootCmd.Flags().StringVar(&relayURL, "relay", "", "relay base URL (overrides RELAY_URL)")
	rootCmd.Flags().StringVar(&ratingsPath, "ratings", ratings.DefaultPath(), "ratings file")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type cli struct {
	manager *session.Manager
	listed  []session.Summary
}

func (c *cli) run(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt)
	defer stop()

	if err := c.manager.Refresh(ctx); err != nil {
		fmt.Printf("Could not load conversations: %v\n", err)
	}
	fmt.Println(help)
	fmt.Println()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		fmt.Print("> ")
		var input string
		select {
		case <-ctx.Done():
			fmt.Println("\nInterrupted")
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			input = strings.TrimSpace(line)
		}
		if input == "" {
			continue
		}
		if input == "/quit" {
			fmt.Println("Bye!")
			return nil
		}
		if strings.HasPrefix(input, "/") {
			c.command(ctx, input)
			continue
		}
		c.send(ctx, input)
	}
}

func (c *cli) send(ctx context.Context, text string) {
	err := c.manager.SendMessage(ctx, text)
	fmt.Println()
	if err != nil {
		fmt.Printf("[error] %v\n", err)
	}
}

func (c *cli) command(ctx context.Context, input string) {
	name, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)

	var err error
	switch name {
	case "/new":
		c.manager.NewConversation()
		fmt.Println("Started a new conversation.")
	case "/list":
		err = c.manager.Refresh(ctx)
		c.printList(c.manager.Conversations())
	case "/find":
		c.printList(c.manager.Filter(arg))
	case "/open":
		var s session.Summary
		if s, err = c.pick(arg); err == nil {
			if err = c.manager.SelectConversation(ctx, s.Ref); err == nil {
				c.printMessages()
			}
		}
	case "/rename":
		n, title, _ := strings.Cut(arg, " ")
		var s session.Summary
		if s, err = c.pick(n); err == nil {
			err = c.manager.Rename(ctx, s.Ref, title)
		}
	case "/delete":
		var s session.Summary
		if s, err = c.pick(arg); err == nil {
			err = c.manager.DeleteConversation(ctx, s.Ref)
		}
	case "/clear":
		err = c.manager.ClearAll(ctx)
		c.listed = nil
	case "/regen":
		if last, ok := c.lastReply(); ok {
			err = c.manager.Regenerate(ctx, last.ID)
			fmt.Println()
		} else {
			err = fmt.Errorf("no reply to regenerate")
		}
	case "/rate":
		if last, ok := c.lastReply(); ok {
			err = c.manager.Rate(last.ID, domain.Rating(arg))
		} else {
			err = fmt.Errorf("no reply to rate")
		}
	default:
		err = fmt.Errorf("unknown command %s", name)
	}
	if err != nil {
		fmt.Printf("[error] %v\n", err)
	}
}

func (c *cli) pick(arg string) (session.Summary, error) {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 || n > len(c.listed) {
		return session.Summary{}, fmt.Errorf("pick a number from /list")
	}
	return c.listed[n-1], nil
}

func (c *cli) printList(list []session.Summary) {
	c.listed = list
	if len(list) == 0 {
		fmt.Println("No conversations.")
		return
	}
	active := c.manager.Active()
	for i, s := range list {
		marker := " "
		if s.Ref == active {
			marker = "*"
		}
		fmt.Printf("%s %2d. %s (%d messages)\n", marker, i+1, s.Title, s.MessageCount)
	}
}

func (c *cli) printMessages() {
	for _, m := range c.manager.Messages() {
		rating := ""
		if m.Rating != domain.RatingUnset {
			rating = " [" + string(m.Rating) + "]"
		}
		fmt.Printf("%s: %s%s\n", m.Role, m.Content, rating)
	}
}

func (c *cli) lastReply() (session.Message, bool) {
	msgs := c.manager.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == domain.RoleAssistant {
			return msgs[i], true
		}
	}
	return session.Message{}, false
}
