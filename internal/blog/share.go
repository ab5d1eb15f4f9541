package blog

import (
	"context"
	"fmt"

	"github.com/2beens/blogsrv/internal/mail"
)

type mailer interface {
	Send(ctx context.Context, msg mail.Message) error
}

// ShareMessage builds the "recommend a post" email.
func ShareMessage(form ShareForm, post *Post, postURL, from string) mail.Message {
	return mail.Message{
		From:    from,
		To:      []string{form.To},
		Subject: fmt.Sprintf("%s recommends you read %s", form.Name, post.Title),
		Body: fmt.Sprintf(
			"Read %s at %s\n\n%s's comments: %s",
			post.Title, postURL, form.Name, form.Comments,
		),
	}
}
