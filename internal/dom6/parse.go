package dom6

import (
	"errors"
	"fmt"
	"io"
	"ironfly/internal/components/htmlutil"
	"ironfly/internal/gamestate"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	ErrNoStatusTable = errors.New("no status table")
	ErrNoGameName    = errors.New("status table header has no game name")
)

var turnRegex = regexp.MustCompile(`(?i)turn\s+(\d+)`)

// beforeComma returns the part of s before its first comma, trimmed.
func beforeComma(s string) string {
	name, _, _ := strings.Cut(s, ",")
	return strings.TrimSpace(name)
}

// Parse reads a status page. The first row of `table.basictab` is a header
// like "te26, turn 81", every following row with at least two cells is a
// nation ("Ermor, New Faith") and its status. A header without a turn
// number yields turn 0.
func Parse(r io.Reader) (gamestate.Snapshot, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return gamestate.Snapshot{}, fmt.Errorf("read html: %w", err)
	}

	table := doc.Find("table.basictab").First()
	if table.Length() == 0 {
		return gamestate.Snapshot{}, ErrNoStatusTable
	}
	rows := table.Find("tr")
	if rows.Length() == 0 {
		return gamestate.Snapshot{}, ErrNoStatusTable
	}

	header := htmlutil.SelectionText(rows.First())
	snapshot := gamestate.Snapshot{
		GameName:    beforeComma(header),
		Nations:     map[string]string{},
		Subscribers: []string{},
	}
	if snapshot.GameName == "" {
		return gamestate.Snapshot{}, ErrNoGameName
	}
	if groups := turnRegex.FindStringSubmatch(header); len(groups) == 2 {
		turn, err := strconv.Atoi(groups[1])
		if err != nil {
			return gamestate.Snapshot{}, fmt.Errorf("turn %q: %w", groups[1], err)
		}
		snapshot.Turn = turn
	}

	rows.Slice(1, rows.Length()).Each(func(_ int, row *goquery.Selection) {
		cols := row.Find("td")
		if cols.Length() < 2 {
			return
		}
		nation := beforeComma(htmlutil.SelectionText(cols.Eq(0)))
		if nation == "" {
			return
		}
		snapshot.Nations[nation] = htmlutil.SelectionText(cols.Eq(1))
	})

	return snapshot, nil
}
