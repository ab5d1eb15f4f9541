package blog

import (
	"cmp"
	"slices"
)

const DefaultSimilarPostsLimit = 4

type scoredPost struct {
	post   *Post
	shared int
}

// SimilarPosts picks up to limit candidates sharing the most tags with post.
// Equal shared counts favor older posts, then lower IDs. The post itself and
// candidates without a common tag are ignored.
func SimilarPosts(post *Post, candidates []*Post, limit int) []*Post {
	if limit < 1 {
		limit = DefaultSimilarPostsLimit
	}

	tagIDs := post.TagIDs()
	scored := make([]scoredPost, 0, len(candidates))
	for _, c := range candidates {
		if c.ID == post.ID {
			continue
		}
		shared := 0
		for _, id := range c.TagIDs() {
			if slices.Contains(tagIDs, id) {
				shared++
			}
		}
		if shared == 0 {
			continue
		}
		scored = append(scored, scoredPost{post: c, shared: shared})
	}

	slices.SortStableFunc(scored, func(a, b scoredPost) int {
		if c := cmp.Compare(b.shared, a.shared); c != 0 {
			return c
		}
		if c := a.post.Publish.Compare(b.post.Publish); c != 0 {
			return c
		}
		return cmp.Compare(a.post.ID, b.post.ID)
	})

	similar := make([]*Post, 0, min(limit, len(scored)))
	for i := 0; i < len(scored) && i < limit; i++ {
		similar = append(similar, scored[i].post)
	}
	return similar
}
