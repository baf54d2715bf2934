package search

import (
	"strconv"
	"strings"
)

// Query represents the structured parameters of a problem search.
// It decouples the raw user input from the actual index requirements.
type Query struct {
	RawInput string // The original input from the user
	Terms    string // The actual text to search in Bluge
	Status   string // Only problems in that status, when set
	Limit    int    // Pagination: number of results
}

// NewSearchQuery parses a raw string to extract command-line style arguments.
// Example: pothole near the school --status open --limit 5
func NewSearchQuery(input string, defaultLimit int) Query {
	query := Query{
		RawInput: input,
		Limit:    defaultLimit,
	}

	parts := strings.Fields(input)
	var textTerms []string

	for i := 0; i < len(parts); i++ {
		part := parts[i]

		// Handle flags like --status open or --limit 5
		if strings.HasPrefix(part, "--") && i+1 < len(parts) {
			key := strings.TrimPrefix(part, "--")
			val := parts[i+1]

			switch key {
			case "status":
				query.Status = strings.ToLower(val)
			case "limit":
				if limit, err := strconv.Atoi(val); err == nil && limit > 0 {
					query.Limit = limit
				}
			}
			i++ // Skip the value part in next iteration
			continue
		}

		textTerms = append(textTerms, part)
	}

	query.Terms = strings.Join(textTerms, " ")
	return query
}

// Empty is true when the query cannot match anything.
func (q Query) Empty() bool {
	return q.Terms == "" && q.Status == ""
}
