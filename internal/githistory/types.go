// Package githistory implements C12, the Git History Pipeline: it ingests
// new commits into C8 under a distinguished language tag and answers
// history queries by delegating search to C8 and post-filtering on the
// parsed commit fields.
package githistory

// SearchGitHistoryOptions are the parameters of search_git_history.
type SearchGitHistoryOptions struct {
	Query       string
	Path        string
	Project     *string
	Branch      string
	MaxCommits  int
	Limit       int
	MinScore    float64
	Author      string // regex, empty disables the filter
	Since       *int64
	Until       *int64
	FilePattern string // regex, empty disables the filter
}

// CommitSearchResult is one matched commit, parsed back out of its
// pseudo-chunk content.
type CommitSearchResult struct {
	Hash         string
	Message      string
	AuthorName   string
	AuthorEmail  string
	FilesChanged []string
	DiffSnippet  string
	CommitDate   string
	Score        float64
}

// SearchGitHistoryResponse is search_git_history's return value.
type SearchGitHistoryResponse struct {
	Results            []CommitSearchResult
	CommitsIndexed     int
	TotalCachedCommits int
	DurationMs         int64
}
