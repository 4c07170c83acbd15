package detect

import (
	"fmt"
	"html"
	"ironfly/internal/gamestate"
	"strings"
)

// the rest of the bot's replies, kept next to the notifications so all
// user facing text lives in one place.

const (
	StartUsage  = "⚠️ Please specify a game name or URL.\nExample: <code>start te26</code>"
	StopUsage   = "⚠️ Please specify a game name. Example: <code>stop te26</code>"
	AccessError = "⚠️ Error accessing game. Check bot logs."
	NoGames     = "You are not subscribed to any game."
	Help        = "🦟 <b>The Iron Fly</b>\n\n" +
		"<code>start &lt;game or url&gt;</code> subscribe to a game\n" +
		"<code>stop &lt;game&gt;</code> unsubscribe from a game\n" +
		"<code>list</code> show your subscriptions"
)

func statusLink(url string) string {
	return fmt.Sprintf("<a href='%s'>Link to Status Page</a>", html.EscapeString(url))
}

func Subscribed(gameName string) string {
	return fmt.Sprintf("✅ Game found! Subscribed to <b>%s</b>.", html.EscapeString(gameName))
}

// StatusDigest summarizes who the game is still waiting for.
func StatusDigest(s gamestate.Snapshot) string {
	b := strings.Builder{}
	b.WriteString("📊 <b>Current Status</b>\n")
	fmt.Fprintf(&b, "Turn: <b>%d</b>\n", s.Turn)

	waiting := s.Waiting()
	if len(waiting) > 0 {
		escaped := make([]string, len(waiting))
		for i, nation := range waiting {
			escaped[i] = html.EscapeString(nation)
		}
		fmt.Fprintf(&b, "⏳ <b>Waiting (%d):</b> %s", len(waiting), strings.Join(escaped, ", "))
	} else {
		b.WriteString("✅ All turns played (processing?)")
	}

	b.WriteString("\n")
	b.WriteString(statusLink(s.URL))
	return b.String()
}

func NotFound(url string) string {
	return fmt.Sprintf("❌ Game not found at:\n%s", html.EscapeString(url))
}

func Unsubscribed(gameName string) string {
	return fmt.Sprintf("🗑️ Unsubscribed from <b>%s</b>.", html.EscapeString(gameName))
}

func NotSubscribed(gameName string) string {
	return fmt.Sprintf("⚠️ You were not subscribed to <b>%s</b>.", html.EscapeString(gameName))
}

// MonitoringStopped tells subscribers that a game's status page is gone and
// nobody will be notified about it anymore.
func MonitoringStopped(gameName, url string) string {
	return fmt.Sprintf(
		"⚠️ <b>Game Monitor Stopped</b> (%s)\n\n"+
			"The status page returned a <b>404 Not Found</b>.\n"+
			"The game has likely finished or the URL is incorrect.\n"+
			"<a href='%s'>Link to Page</a>",
		html.EscapeString(gameName),
		html.EscapeString(url),
	)
}

func SubscriptionList(games []string) string {
	if len(games) == 0 {
		return NoGames
	}
	lines := make([]string, 0, len(games)+1)
	lines = append(lines, fmt.Sprintf("📋 <b>Subscriptions (%d)</b>", len(games)))
	for _, game := range games {
		lines = append(lines, "• "+html.EscapeString(game))
	}
	return strings.Join(lines, "\n")
}
