package alert

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FormatPayload builds the webhook body for the given format.
func FormatPayload(format string, event AlertEvent) ([]byte, error) {
	switch format {
	case "slack":
		return formatSlack(event)
	case "pagerduty":
		return formatPagerDuty(event)
	default:
		return formatGeneric(event)
	}
}

func formatGeneric(event AlertEvent) ([]byte, error) {
	return json.Marshal(event)
}

func formatSlack(event AlertEvent) ([]byte, error) {
	fields := []any{
		map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Event:* %s", event.Event)},
	}
	if event.URL != "" {
		fields = append(fields, map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*URL:* %s", event.URL)})
	}
	if event.BlockType != "" {
		fields = append(fields, map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Blocked by:* %s", event.BlockType)})
	}
	if len(event.Reasons) > 0 {
		fields = append(fields, map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Reasons:* %s", strings.Join(event.Reasons, ", "))})
	}
	if event.EndsAt != "" {
		fields = append(fields, map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Lock ends:* %s", event.EndsAt)})
	}
	if event.Detail != "" {
		fields = append(fields, map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Detail:* %s", event.Detail)})
	}

	payload := map[string]any{
		"blocks": []any{
			map[string]any{
				"type": "header",
				"text": map[string]any{
					"type": "plain_text",
					"text": fmt.Sprintf("contentlock: %s", headline(event)),
				},
			},
			map[string]any{
				"type":   "section",
				"fields": fields,
			},
		},
	}
	return json.Marshal(payload)
}

func formatPagerDuty(event AlertEvent) ([]byte, error) {
	summary := fmt.Sprintf("contentlock %s", headline(event))
	if event.URL != "" {
		summary += ": " + event.URL
	}

	payload := map[string]any{
		"event_action": "trigger",
		"payload": map[string]any{
			"summary":  summary,
			"severity": severityFor(event.Event),
			"source":   "contentlock",
			"custom_details": map[string]any{
				"event":      event.Event,
				"url":        event.URL,
				"block_type": event.BlockType,
				"reasons":    event.Reasons,
				"policy_id":  event.PolicyID,
				"ends_at":    event.EndsAt,
				"detail":     event.Detail,
			},
		},
	}
	return json.Marshal(payload)
}

func headline(event AlertEvent) string {
	switch event.Event {
	case EventBlock:
		if event.BlockType != "" {
			return "blocked (" + event.BlockType + ")"
		}
		return "blocked"
	case EventSelfLockActivated:
		return "self-lock activated"
	case EventUnlockRequested:
		return "early unlock requested"
	case EventUnlockConfirmed:
		return "self-lock ended early"
	case EventSelfLockExpired:
		return "self-lock expired"
	case EventTamperExtended:
		return "clock rollback detected"
	case EventLockIncremented:
		return "self-lock extended"
	default:
		return event.Event
	}
}

func severityFor(event string) string {
	switch event {
	case EventTamperExtended:
		return "critical"
	case EventUnlockConfirmed, EventUnlockRequested:
		return "error"
	case EventBlock, EventLockIncremented:
		return "warning"
	default:
		return "info"
	}
}
