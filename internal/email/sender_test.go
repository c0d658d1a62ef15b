package email

import (
	"context"
	"errors"
	"testing"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rassdread/homecheff-app-sub014/pkg/config"
	"github.com/rassdread/homecheff-app-sub014/pkg/logger"
)

type fakeMailClient struct {
	sent   []*mail.SGMailV3
	status int
	err    error
}

func (f *fakeMailClient) SendWithContext(_ context.Context, msg *mail.SGMailV3) (*rest.Response, error) {
	f.sent = append(f.sent, msg)
	if f.err != nil {
		return nil, f.err
	}
	return &rest.Response{StatusCode: f.status}, nil
}

func testConfig() config.SendgridConfig {
	return config.SendgridConfig{APIKey: "SG.test", DefaultFrom: "noreply@homecheff.eu", FromName: "HomeCheff"}
}

func TestSendReviewRequestBuildsMessage(t *testing.T) {
	client := &fakeMailClient{status: 202}
	sender := newSendGridSender(client, testConfig(), logger.New(logger.Options{ServiceName: "email-test"}))

	err := sender.SendReviewRequest(context.Background(), ReviewRequest{
		ToEmail:      "koper@example.nl",
		ToName:       "Sanne",
		ProductTitle: "Appeltaart",
		OrderNumber:  "HC-1001",
		ReviewURL:    "https://homecheff.eu/review/abc",
	})
	require.NoError(t, err)
	require.Len(t, client.sent, 1)

	msg := client.sent[0]
	assert.Equal(t, "noreply@homecheff.eu", msg.From.Address)
	assert.Equal(t, "Hoe was Appeltaart? Laat een review achter", msg.Subject)
	require.Len(t, msg.Personalizations, 1)
	assert.Equal(t, "koper@example.nl", msg.Personalizations[0].To[0].Address)
	require.Len(t, msg.Content, 2)
	assert.Contains(t, msg.Content[0].Value, "https://homecheff.eu/review/abc")
}

func TestSendReviewRequestFailures(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "email-test"})

	rejected := newSendGridSender(&fakeMailClient{status: 400}, testConfig(), logg)
	require.ErrorContains(t, rejected.SendReviewRequest(context.Background(), ReviewRequest{ToEmail: "a@b.nl"}), "status 400")

	broken := newSendGridSender(&fakeMailClient{err: errors.New("timeout")}, testConfig(), logg)
	require.ErrorContains(t, broken.SendReviewRequest(context.Background(), ReviewRequest{ToEmail: "a@b.nl"}), "timeout")

	require.Error(t, rejected.SendReviewRequest(context.Background(), ReviewRequest{}))
}

func TestNewSenderWithoutKeyLogsOnly(t *testing.T) {
	sender, err := NewSender(config.SendgridConfig{}, logger.New(logger.Options{ServiceName: "email-test"}))
	require.NoError(t, err)
	_, ok := sender.(*LogSender)
	require.True(t, ok)
	require.NoError(t, sender.SendReviewRequest(context.Background(), ReviewRequest{ToEmail: "a@b.nl"}))
}

func TestRenderReviewRequestEscapesHTML(t *testing.T) {
	_, body := renderReviewRequest(ReviewRequest{ProductTitle: "<b>Taart</b>", ReviewURL: "https://x"})
	assert.Contains(t, body, "&lt;b&gt;Taart&lt;/b&gt;")
	assert.Contains(t, body, "Hoi daar")
}
