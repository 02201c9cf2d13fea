package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// Notify publishes onto a single SNS topic (spec §4.1: best-effort event fanout). The
// caller's topic name travels as a message attribute since one SNS topic ARN fans out
// every event kind the control plane emits.
type Notify struct {
	Client   *sns.Client
	TopicARN string
}

func NewNotify(client *sns.Client, topicARN string) *Notify {
	return &Notify{Client: client, TopicARN: topicARN}
}

func (n *Notify) Publish(ctx context.Context, topic string, payload []byte) error {
	_, err := n.Client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(n.TopicARN),
		Message:  aws.String(string(payload)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"event": {DataType: aws.String("String"), StringValue: aws.String(topic)},
		},
	})
	return translateErr(err, "publish sns %s", topic)
}
