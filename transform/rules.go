package transform

import (
	"github.com/pevans/pagewatch/intent"
	"github.com/pevans/pagewatch/strategy"
)

// Rules is evaluated top to bottom and the first match wins. Order here is
// priority, not confidence.
var Rules = []Rule{
	{
		Host:        "github.com",
		Path:        []string{"*", "*", "releases"},
		Intent:      intent.Release,
		Op:          Op{Kind: AppendSuffix, Value: ".atom"},
		Engine:      strategy.Feed{},
		Confidence:  0.95,
		Description: "GitHub releases page to releases Atom feed",
	},
	{
		Host:        "github.com",
		Path:        []string{"*", "*", "tags"},
		Intent:      intent.Release,
		Op:          Op{Kind: AppendSuffix, Value: ".atom"},
		Engine:      strategy.Feed{},
		Confidence:  0.9,
		Description: "GitHub tags page to tags Atom feed",
	},
	{
		Host:        "github.com",
		Path:        []string{"*", "*"},
		Intent:      intent.Release,
		Op:          Op{Kind: AppendPath, Value: "releases.atom"},
		Engine:      strategy.Feed{},
		Confidence:  0.95,
		Description: "GitHub repository to releases Atom feed",
	},
	{
		Host:        "gitlab.com",
		Path:        []string{"*", "*"},
		Intent:      intent.Release,
		Op:          Op{Kind: AppendPath, Value: "-/tags?format=atom"},
		Engine:      strategy.Feed{},
		Confidence:  0.85,
		Description: "GitLab project to tags Atom feed",
	},
	{
		Host:        "pypi.org",
		Path:        []string{"project", "*"},
		Intent:      intent.Release,
		Op:          Op{Kind: ReplacePath, Value: "/rss/project/{1}/releases.xml"},
		Engine:      strategy.Feed{},
		Confidence:  0.95,
		Description: "PyPI project to release RSS feed",
	},
	{
		Host:        "www.reddit.com",
		Path:        []string{"r", "*"},
		Intent:      intent.News,
		Op:          Op{Kind: AppendSuffix, Value: ".rss"},
		Engine:      strategy.Feed{},
		Confidence:  0.9,
		Description: "Subreddit to RSS feed",
	},
	{
		Host:        "reddit.com",
		Path:        []string{"r", "*"},
		Intent:      intent.News,
		Op:          Op{Kind: AppendSuffix, Value: ".rss"},
		Engine:      strategy.Feed{},
		Confidence:  0.9,
		Description: "Subreddit to RSS feed",
	},
	{
		Host:        "medium.com",
		Path:        []string{"*"},
		Intent:      intent.News,
		Op:          Op{Kind: ReplacePath, Value: "/feed/{0}"},
		Engine:      strategy.Feed{},
		Confidence:  0.9,
		Description: "Medium author or publication to RSS feed",
	},
	{
		Host:        "dev.to",
		Path:        []string{"*"},
		Intent:      intent.News,
		Op:          Op{Kind: ReplacePath, Value: "/feed/{0}"},
		Engine:      strategy.Feed{},
		Confidence:  0.85,
		Description: "DEV author to RSS feed",
	},
	{
		Host:        "www.youtube.com",
		Path:        []string{"channel", "*"},
		Intent:      intent.News,
		Op:          Op{Kind: ReplacePath, Value: "/feeds/videos.xml?channel_id={1}"},
		Engine:      strategy.Feed{},
		Confidence:  0.9,
		Description: "YouTube channel to uploads Atom feed",
	},
	{
		Host:        "news.ycombinator.com",
		Intent:      intent.News,
		Op:          Op{Kind: ReplacePath, Value: "/rss"},
		Engine:      strategy.Feed{},
		Confidence:  0.85,
		Description: "Hacker News front page RSS feed",
	},
	{
		Host:        "github.com",
		Path:        []string{"*", "*"},
		Intent:      intent.Generic,
		Op:          Op{Kind: AppendPath, Value: "commits.atom"},
		Engine:      strategy.Feed{},
		Confidence:  0.7,
		Description: "GitHub repository to commits Atom feed",
	},
}
