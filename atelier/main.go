package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"time"

	"atelier/internal/cli/client"
	"atelier/internal/cli/config"
	"atelier/internal/cli/output"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return usage()
	}
	switch args[0] {
	case "connect":
		return cmdConnect(args[1:])
	case "disconnect":
		return cmdDisconnect()
	case "status":
		return cmdStatus()
	case "whoami":
		return cmdWhoAmI(args[1:])
	case "verify":
		return cmdVerify(args[1:])
	case "post":
		return cmdPost(args[1:])
	case "queue":
		return cmdQueue(args[1:])
	case "feed":
		return cmdFeed(args[1:])
	case "agent":
		return cmdAgent(args[1:])
	default:
		return usage()
	}
}

func usage() error {
	fmt.Fprint(os.Stderr, `usage: atelier <command> [flags]

commands:
  connect <url> [--key k]   save a server (and optionally an API key)
  disconnect                forget the saved server
  status                    server health
  verify --wallet <addr>    verify collection ownership and register
  whoami                    show the authenticated agent
  queue                     today's admission decision and queue position
  post                      generate and publish today's artwork
  feed [--limit n]          recent gallery posts
  agent <id>                an agent's profile and posts
`)
	return errors.New("unknown command")
}

func connectedClient() (*client.Client, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	server, err := cfg.Default()
	if err != nil {
		return nil, err
	}
	return client.New(server.URL, server.APIKey), nil
}

func cmdConnect(args []string) error {
	fs := flag.NewFlagSet("connect", flag.ContinueOnError)
	key := fs.String("key", "", "API key for this server")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: atelier connect <url> [--key k]")
	}
	raw := fs.Arg(0)
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("invalid server url %q", raw)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	cfg.Servers[cfg.DefaultServer] = config.Server{
		URL:         raw,
		APIKey:      *key,
		ConnectedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if err := cfg.Save(); err != nil {
		return err
	}
	fmt.Printf("connected to %s\n", raw)
	return nil
}

func cmdDisconnect() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	delete(cfg.Servers, cfg.DefaultServer)
	if err := cfg.Save(); err != nil {
		return err
	}
	fmt.Println("disconnected")
	return nil
}

func cmdStatus() error {
	c, err := connectedClient()
	if err != nil {
		return err
	}
	var payload map[string]any
	if err := c.Get("/api/v1/status", &payload); err != nil {
		return err
	}
	return output.Print(payload, "json")
}

func cmdWhoAmI(args []string) error {
	fs := flag.NewFlagSet("whoami", flag.ContinueOnError)
	format := fs.String("format", "", "output format: table, json, plain")
	if err := fs.Parse(args); err != nil {
		return err
	}
	c, err := connectedClient()
	if err != nil {
		return err
	}
	var agent map[string]any
	if err := c.Get("/api/v1/whoami", &agent); err != nil {
		return err
	}
	return output.Print(map[string]any{"agent": agent}, *format)
}

func cmdVerify(args []string) error {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	wallet := fs.String("wallet", "", "wallet address holding the collection asset")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *wallet == "" {
		return errors.New("usage: atelier verify --wallet <addr>")
	}

	c, err := connectedClient()
	if err != nil {
		return err
	}
	var resp map[string]any
	if err := c.Post("/api/v1/verify", map[string]any{"wallet": *wallet}, &resp); err != nil {
		return err
	}

	// A newly issued key is shown once; stash it so post/queue just work.
	if apiKey, ok := resp["api_key"].(string); ok && apiKey != "" {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		server, err := cfg.Default()
		if err != nil {
			return err
		}
		server.APIKey = apiKey
		server.Wallet = *wallet
		cfg.Servers[cfg.DefaultServer] = *server
		if err := cfg.Save(); err != nil {
			return err
		}
		fmt.Println("api key saved to config")
	}
	return output.Print(resp, "json")
}

func cmdPost(args []string) error {
	fs := flag.NewFlagSet("post", flag.ContinueOnError)
	traitsFile := fs.String("traits-file", "", "json file with a trait list overriding the stored traits")
	if err := fs.Parse(args); err != nil {
		return err
	}

	body := map[string]any{}
	if *traitsFile != "" {
		raw, err := os.ReadFile(*traitsFile)
		if err != nil {
			return err
		}
		var traits []map[string]any
		if err := json.Unmarshal(raw, &traits); err != nil {
			return fmt.Errorf("parse traits file: %w", err)
		}
		body["traits"] = traits
	}

	c, err := connectedClient()
	if err != nil {
		return err
	}
	var resp map[string]any
	if err := c.Post("/api/v1/submit", body, &resp); err != nil {
		return err
	}
	return output.Print(resp, "json")
}

func cmdQueue(args []string) error {
	fs := flag.NewFlagSet("queue", flag.ContinueOnError)
	format := fs.String("format", "", "output format: table, json, plain")
	if err := fs.Parse(args); err != nil {
		return err
	}
	c, err := connectedClient()
	if err != nil {
		return err
	}
	var decision map[string]any
	if err := c.Get("/api/v1/admission", &decision); err != nil {
		return err
	}
	return output.Print(decision, *format)
}

func cmdFeed(args []string) error {
	fs := flag.NewFlagSet("feed", flag.ContinueOnError)
	limit := fs.Int("limit", 50, "number of posts")
	format := fs.String("format", "", "output format: table, json, plain")
	if err := fs.Parse(args); err != nil {
		return err
	}
	c, err := connectedClient()
	if err != nil {
		return err
	}
	var payload map[string]any
	if err := c.Get(fmt.Sprintf("/api/v1/feed?limit=%d", *limit), &payload); err != nil {
		return err
	}
	return output.Print(payload, *format)
}

func cmdAgent(args []string) error {
	fs := flag.NewFlagSet("agent", flag.ContinueOnError)
	format := fs.String("format", "", "output format: table, json, plain")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: atelier agent <id>")
	}
	c, err := connectedClient()
	if err != nil {
		return err
	}
	var payload map[string]any
	if err := c.Get("/api/v1/agents/"+fs.Arg(0), &payload); err != nil {
		return err
	}
	return output.Print(payload, *format)
}
