package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	mcpauth "github.com/modelcontextprotocol/go-sdk/auth"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"atelier/internal/auth"
	"atelier/internal/db"
	"atelier/internal/grant"
	"atelier/internal/models"
)

type mcpSubmitArgs struct {
	Traits models.TraitList `json:"traits,omitempty"`
}

type mcpFeedArgs struct {
	Limit *int `json:"limit,omitempty"`
}

type mcpNoArgs struct{}

func mcpHandler(database *sql.DB, orch *grant.Orchestrator, version string) http.Handler {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "atelier-server",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "atelier_check_admission",
		Description: "Check whether the agent may post today and its queue position",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args mcpNoArgs) (*mcp.CallToolResult, any, error) {
		agent, err := mcpAgent(ctx, req, database)
		if err != nil {
			return nil, nil, err
		}
		decision, err := orch.CheckAdmission(ctx, agent.ID)
		if err != nil {
			return nil, nil, err
		}
		out, err := toJSONText(decision)
		if err != nil {
			return nil, nil, err
		}
		return textToolResult(out), nil, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "atelier_submit_artwork",
		Description: "Generate and publish today's artwork for the agent",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args mcpSubmitArgs) (*mcp.CallToolResult, any, error) {
		agent, err := mcpAgent(ctx, req, database)
		if err != nil {
			return nil, nil, err
		}
		result, err := orch.SubmitAgent(ctx, agent, args.Traits)
		if err != nil {
			return nil, nil, err
		}
		emitWebhookEvent(database, "post.created", map[string]any{
			"post_id":   result.Post.ID,
			"agent_id":  result.Post.AgentID,
			"image_url": result.Post.ImageURL,
			"day":       result.Post.Day,
		})
		out, err := toJSONText(result)
		if err != nil {
			return nil, nil, err
		}
		return textToolResult(out), nil, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "atelier_list_feed",
		Description: "List the most recent gallery posts",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args mcpFeedArgs) (*mcp.CallToolResult, any, error) {
		limit := defaultFeedLimit
		if args.Limit != nil && *args.Limit > 0 {
			limit = min(*args.Limit, maxFeedLimit)
		}
		posts, err := db.ListRecentPosts(ctx, database, limit)
		if err != nil {
			return nil, nil, err
		}
		out, err := toJSONText(map[string]any{"posts": posts})
		if err != nil {
			return nil, nil, err
		}
		return textToolResult(out), nil, nil
	})

	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return server
	}, nil)

	verify := func(ctx context.Context, token string, req *http.Request) (*mcpauth.TokenInfo, error) {
		agent, err := db.GetAgentByAPIKeyHash(ctx, database, auth.HashAPIKey(token))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, mcpauth.ErrInvalidToken
			}
			return nil, err
		}
		return &mcpauth.TokenInfo{
			Scopes:     []string{"read", "write"},
			Expiration: time.Now().UTC().Add(10 * 365 * 24 * time.Hour),
			UserID:     agent.Wallet,
			Extra: map[string]any{
				"agent_id": agent.ID,
			},
		}, nil
	}

	return mcpauth.RequireBearerToken(verify, nil)(handler)
}

func mcpAgent(ctx context.Context, req *mcp.CallToolRequest, database *sql.DB) (*models.Agent, error) {
	if req == nil || req.Extra == nil || req.Extra.TokenInfo == nil {
		return nil, errors.New("missing auth token")
	}
	id, ok := req.Extra.TokenInfo.Extra["agent_id"].(int64)
	if !ok {
		return nil, errors.New("missing authenticated agent")
	}
	agent, err := db.GetAgent(ctx, database, id)
	if err != nil {
		return nil, err
	}
	return agent, nil
}

func textToolResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

func toJSONText(v any) (string, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}
