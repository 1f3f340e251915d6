package logger

import (
	"context"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

var cwClient *cloudwatch.Client
var cwNamespace = "TradeFlow"

// InitCloudWatch initialises the CloudWatch client used by the runtime
// report. If region is empty it falls back to the AWS_REGION environment
// variable. When the client cannot be created a warning is logged and metric
// publishing stays disabled.
func InitCloudWatch(region, namespace string) {
	log := GetLogger().WithComponent("cloudwatch")

	if region == "" {
		region = os.Getenv("AWS_REGION")
	}

	ctx := context.Background()
	opts := []func(*config.LoadOptions) error{}
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		log.WithError(err).Warn("failed to load AWS configuration; CloudWatch metrics disabled")
		return
	}

	cwClient = cloudwatch.NewFromConfig(cfg)

	if namespace != "" {
		cwNamespace = namespace
	}

	log.WithFields(Fields{"region": region, "namespace": cwNamespace}).Info("initialized CloudWatch client")
}

// publishMetrics sends the provided metric data to CloudWatch when the client
// has been initialised.
func publishMetrics(ctx context.Context, data []cwtypes.MetricDatum) {
	log := GetLogger().WithComponent("cloudwatch")
	if cwClient == nil {
		log.Debug("CloudWatch client not initialized; skipping metric publish")
		return
	}
	if len(data) == 0 {
		return
	}

	if _, err := cwClient.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(cwNamespace),
		MetricData: data,
	}); err != nil {
		log.WithError(err).Warn("failed to publish CloudWatch metrics")
	}
}
