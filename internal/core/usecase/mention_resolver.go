package usecase

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/titledesk/timeline/internal/core/domain"
	"github.com/titledesk/timeline/internal/core/ports"
)

var mentionPattern = regexp.MustCompile(`@([a-zA-Z0-9][a-zA-Z0-9._-]*)`)

// MentionResolver validates @-mentions in comment text against the user
// directory. It re-derives the referenced handles from the text itself and
// never trusts the caller's candidate list blindly.
//
// Contract: invalid, inactive, or unreferenced candidates are silently
// dropped on every call path; resolution never fails a comment write.
// Only a directory lookup error propagates.
type MentionResolver struct {
	directory ports.UserDirectory
}

func NewMentionResolver(directory ports.UserDirectory) *MentionResolver {
	return &MentionResolver{directory: directory}
}

// Resolve returns the subset of candidateIDs that are both referenced by
// an @handle inside text and correspond to existing, active users, in
// candidate order without duplicates.
func (r *MentionResolver) Resolve(ctx context.Context, text string, candidateIDs []int64) ([]domain.MentionedUser, error) {
	if len(candidateIDs) == 0 {
		return nil, nil
	}

	handles := referencedHandles(text)
	if len(handles) == 0 {
		return nil, nil
	}

	users, err := r.directory.ActiveByIDs(ctx, candidateIDs)
	if err != nil {
		return nil, fmt.Errorf("directory lookup: %w", err)
	}

	seen := make(map[int64]bool, len(candidateIDs))
	mentions := make([]domain.MentionedUser, 0, len(candidateIDs))
	for _, id := range candidateIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		user, ok := users[id]
		if !ok {
			continue
		}
		if !handles[strings.ToLower(user.Handle)] {
			continue
		}
		mentions = append(mentions, domain.MentionedUser{
			ID:          user.ID,
			Handle:      user.Handle,
			DisplayName: user.DisplayName,
		})
	}
	if len(mentions) == 0 {
		return nil, nil
	}
	return mentions, nil
}

func referencedHandles(text string) map[string]bool {
	matches := mentionPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	handles := make(map[string]bool, len(matches))
	for _, m := range matches {
		handles[strings.ToLower(m[1])] = true
	}
	return handles
}
