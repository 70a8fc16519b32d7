package constants

import "time"

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
)

const (
	DefaultInputTopic    = "comment-events"
	DefaultDLQTopic      = "comment-events-dlq"
	DefaultConsumerGroup = "classifier-workers"
)

const (
	DefaultMongoDBName = "sentinel"

	CollectionComments      = "comments"
	CollectionClientConfigs = "client_configs"
)

const (
	CacheKeyPrefixConfig = "config:"
	CacheKeyPrefixSeen   = "seen:"
)

const (
	LLMTimeout     = 30 * time.Second
	SocialTimeout  = 8 * time.Second
	WebhookTimeout = 5 * time.Second
)

const (
	DefaultPollIntervalSeconds = 300
	DefaultLookbackSeconds     = 3600
	DefaultWorkerCount         = 4
	DefaultMaxReceiveCount     = 3
)

const (
	DefaultMinConfidence     = 70
	DefaultToxicityThreshold = 7
	DefaultMaxReplyLength    = 500
	DefaultSpamConfidence    = 80
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

const (
	PlatformFacebook    = "facebook"
	PlatformInstagram   = "instagram"
	PlatformFacebookAds = "facebook_ads"
)
