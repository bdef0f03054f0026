package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"civicfeed/internal/apiclient"
	"civicfeed/internal/config"
	"civicfeed/internal/feed"
	"civicfeed/internal/models"
	"civicfeed/internal/session"

	"github.com/fatih/color"
)

const prompt = "civicfeed> "

var (
	titleStyle = color.New(color.Bold).SprintFunc()
	mutedStyle = color.New(color.FgHiBlack).SprintFunc()
	tabStyle   = color.New(color.FgCyan, color.Bold).SprintFunc()
	activeLike = color.New(color.FgRed).SprintFunc()
	activeMark = color.New(color.FgYellow).SprintFunc()
)

// app holds one screen's worth of state. A new session after expiry gets a
// fresh guard, client and feed.
type app struct {
	cfg        *config.Config
	out        io.Writer
	clientOpts []apiclient.Option

	client *apiclient.Client
	feed   *feed.Feed
}

func newApp(cfg *config.Config, out io.Writer) *app {
	a := &app{cfg: cfg, out: out}
	if t := cfg.FeedRequestTimeout(); t > 0 {
		a.clientOpts = append(a.clientOpts, apiclient.WithTimeout(t))
	}
	a.connect()
	return a
}

func (a *app) setLocation(lat, lng float64) {
	a.clientOpts = append(a.clientOpts, apiclient.WithLocation(lat, lng))
	a.connect()
}

func (a *app) connect() {
	guard := session.NewGuard(session.NewMemoryTokenStore())
	a.client = apiclient.New(a.cfg.FeedAPIURL, guard, a.clientOpts...)
	a.feed = feed.New(a.client, guard, feed.Options{
		PageSize:          a.cfg.FeedPageSize,
		ReadMoreThreshold: a.cfg.FeedReadMoreThreshold,
	})
}

// run executes one command line and reports whether the user asked to quit.
func (a *app) run(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	if cmd != "login" && cmd != "help" && cmd != "quit" && cmd != "exit" && a.feed.SessionExpired() {
		a.reportError(models.ErrSessionExpired)
		return false
	}

	var err error
	switch cmd {
	case "quit", "exit":
		return true
	case "help":
		a.printHelp()
	case "login":
		err = a.login(ctx, args)
	case "refresh":
		if err = a.feed.LoadFirstPage(ctx); err == nil {
			a.render()
		}
	case "more":
		if !a.feed.HasMore() {
			fmt.Fprintln(a.out, mutedStyle("No more posts."))
			return false
		}
		if err = a.feed.LoadNextPage(ctx); err == nil {
			a.render()
		}
	case "like", "bookmark":
		var id int64
		if id, err = parsePostID(args); err != nil {
			break
		}
		if cmd == "like" {
			err = a.feed.ToggleLike(ctx, id)
		} else {
			err = a.feed.ToggleBookmark(ctx, id)
		}
		if p, ok := a.feed.Post(id); ok {
			fmt.Fprintln(a.out, engagementLine(p))
		}
	case "tab":
		err = a.selectTab(args)
	case "tabs":
		a.printTabs()
	case "expand":
		var id int64
		if id, err = parsePostID(args); err == nil {
			a.feed.ToggleExpand(id)
			a.render()
		}
	case "show":
		a.render()
	default:
		err = fmt.Errorf("unknown command %q (try help)", cmd)
	}

	if err != nil {
		a.reportError(err)
	}
	return false
}

func (a *app) login(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: login <email> <password>")
	}
	if a.feed.SessionExpired() {
		a.connect()
	}
	res, err := a.client.Login(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Logged in as %s\n", titleStyle(res.User.Username))
	if err := a.feed.LoadFirstPage(ctx); err != nil {
		return err
	}
	a.render()
	return nil
}

func (a *app) selectTab(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: tab <all|government|community|news|localissue>")
	}
	c, ok := models.ParseCategory(strings.Join(args, " "))
	if !ok {
		return fmt.Errorf("unknown tab %q", strings.Join(args, " "))
	}
	if err := a.feed.ApplyCategoryFilter(c); err != nil {
		return err
	}
	a.render()
	return nil
}

func (a *app) reportError(err error) {
	switch {
	case models.IsSessionExpired(err):
		fmt.Fprintln(a.out, color.RedString("Your session has expired. Log in again with: login <email> <password>"))
	case models.IsNetworkFailure(err):
		fmt.Fprintln(a.out, color.YellowString("Network error: %v. Try again.", err))
	default:
		fmt.Fprintln(a.out, color.RedString("Error: %v", err))
	}
}

func (a *app) printTabs() {
	var parts []string
	for _, c := range feed.Tabs() {
		label := feed.TabLabel(c)
		if c == a.feed.Category() {
			label = tabStyle("[" + label + "]")
		}
		parts = append(parts, label)
	}
	fmt.Fprintln(a.out, strings.Join(parts, "  "))
}

func (a *app) render() {
	a.printTabs()
	views := a.feed.View()
	if len(views) == 0 {
		fmt.Fprintln(a.out, mutedStyle("No posts to show."))
	}
	for _, v := range views {
		fmt.Fprintln(a.out, renderPost(v))
	}
	switch {
	case a.feed.IsLoading():
		fmt.Fprintln(a.out, mutedStyle("Loading..."))
	case a.feed.HasMore():
		fmt.Fprintln(a.out, mutedStyle("Type 'more' to load more posts."))
	}
}

func renderPost(v feed.PostView) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s  %s\n",
		mutedStyle(fmt.Sprintf("#%d", v.Post.ID)),
		tabStyle(v.TypeLabel),
		mutedStyle(v.AuthorLabel+" • "+v.DateText))
	fmt.Fprintf(&b, "  %s\n", titleStyle(v.Post.Title))
	body := v.Body
	switch {
	case v.ShowReadMore:
		body += " " + mutedStyle("(read more)")
	case v.Long:
		body += " " + mutedStyle("(show less)")
	}
	fmt.Fprintf(&b, "  %s\n", body)
	if v.LocationText != "" {
		fmt.Fprintf(&b, "  %s\n", mutedStyle(v.LocationText))
	}
	if n := len(v.Post.Media); n > 0 {
		fmt.Fprintf(&b, "  %s\n", mutedStyle(fmt.Sprintf("%d attachment(s)", n)))
	}
	fmt.Fprintf(&b, "  %s", engagementLine(v.Post))
	return b.String()
}

func engagementLine(p models.Post) string {
	like := fmt.Sprintf("♥ %s", p.LikeCount)
	if p.Liked {
		like = activeLike(like)
	}
	mark := fmt.Sprintf("★ %s", p.BookmarkCount)
	if p.Bookmarked {
		mark = activeMark(mark)
	}
	return fmt.Sprintf("%s  %s  💬 %s", like, mark, p.CommentCount)
}

func parsePostID(args []string) (int64, error) {
	if len(args) != 1 {
		return 0, errors.New("expected a post id")
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(args[0], "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid post id %q", args[0])
	}
	return id, nil
}

func (a *app) printHelp() {
	fmt.Fprintln(a.out, `Commands:
  login <email> <password>   start a session and load the feed
  refresh                    reload the first page
  more                       load the next page
  like <id>                  toggle like
  bookmark <id>              toggle bookmark
  tab <name>                 filter by post type (all, government, community, news, localissue)
  tabs                       list tabs
  expand <id>                toggle read more
  show                       print the current view
  quit`)
}
