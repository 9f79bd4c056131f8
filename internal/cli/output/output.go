package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

func DefaultFormat() string {
	if isatty.IsTerminal(os.Stdout.Fd()) {
		return "table"
	}
	return "json"
}

func Print(payload map[string]any, format string) error {
	format = strings.TrimSpace(strings.ToLower(format))
	if format == "" {
		format = DefaultFormat()
	}

	switch format {
	case "json":
		return printJSON(payload)
	case "table":
		return printTable(payload)
	case "plain":
		return printPlain(payload)
	default:
		return errors.New("invalid --format value")
	}
}

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

func printTable(payload map[string]any) error {
	switch {
	case hasKey(payload, "posts"):
		fmt.Println("ID\tAGENT\tCREATED\tIMAGE")
		for _, row := range toObjectSlice(payload["posts"]) {
			fmt.Printf("%s\t%s\t%s\t%s\n",
				str(row["id"]), str(row["agent_id"]), str(row["created"]), str(row["image_url"]))
		}
	case hasKey(payload, "verdict"):
		fmt.Println("VERDICT\tPOSITION\tSPOTS\tPOSTS_TODAY")
		fmt.Printf("%s\t%s\t%s\t%s\n",
			str(payload["verdict"]), str(payload["queue_position"]),
			str(payload["spots_remaining"]), str(payload["posts_today"]))
	case hasKey(payload, "agent"):
		row, _ := payload["agent"].(map[string]any)
		fmt.Println("ID\tWALLET\tLAST_POSTED\tTOTAL_POSTS")
		fmt.Printf("%s\t%s\t%s\t%s\n",
			str(row["id"]), str(row["wallet"]), str(row["last_posted"]), str(row["total_posts"]))
	default:
		return printJSON(payload)
	}
	return nil
}

func printPlain(payload map[string]any) error {
	switch {
	case hasKey(payload, "posts"):
		for _, row := range toObjectSlice(payload["posts"]) {
			fmt.Printf("%s %s\n", str(row["created"]), str(row["image_url"]))
		}
	case hasKey(payload, "verdict"):
		fmt.Printf("%s position=%s\n", str(payload["verdict"]), str(payload["queue_position"]))
	default:
		return printJSON(payload)
	}
	return nil
}

func hasKey(m map[string]any, key string) bool {
	_, ok := m[key]
	return ok
}

func toObjectSlice(v any) []map[string]any {
	items, _ := v.([]any)
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if obj, ok := item.(map[string]any); ok {
			out = append(out, obj)
		}
	}
	return out
}

func str(v any) string {
	switch t := v.(type) {
	case nil:
		return "-"
	case string:
		if t == "" {
			return "-"
		}
		return t
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%v", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
