package common

const (
	EnvKeyGoEnv string = "GO_ENV"

	EnvKeyRunIntegrationTests string = "RUN_INTEGRATION_TESTS"

	EnvKeyMADBType string = "MA_DB_TYPE"
	EnvKeyMADbPath string = "MA_DB_PATH"

	EnvKeyMAHttpHostPort string = "MA_HTTP_HOST_PORT"
	EnvKeyMAGrpcHostPort string = "MA_GRPC_HOST_PORT"

	// address the gateways are told to use as their proxy, e.g. 192.168.1.10:8080
	EnvKeyMAAdvertiseAddress string = "MA_ADVERTISE_ADDRESS"
	EnvKeyMAGatewayID        string = "MA_GATEWAY_ID"
	EnvKeyMAGatewayAddress   string = "MA_GATEWAY_ADDRESS"
	EnvKeyMASendDataToCloud  string = "MA_SEND_DATA_TO_CLOUD"
	EnvKeyMADiscoveryAddress string = "MA_DISCOVERY_ADDRESS"

	EnvKeyMACloudURL         string = "MA_CLOUD_URL"
	EnvKeyMARelayTimeout     string = "MA_RELAY_TIMEOUT"
	EnvKeyMARelayMaxRetries  string = "MA_RELAY_MAX_RETRIES"
	EnvKeyMARelayWorkers     string = "MA_RELAY_WORKERS"
	EnvKeyMARelayQueueSize   string = "MA_RELAY_QUEUE_SIZE"
	EnvKeyMAShutdownGrace    string = "MA_SHUTDOWN_GRACE"
	EnvKeyMAStaleTimeout     string = "MA_STALE_TIMEOUT"
	EnvKeyMASweepInterval    string = "MA_SWEEP_INTERVAL"
	EnvKeyMAMonitorInterval  string = "MA_MONITOR_INTERVAL"
	EnvKeyMADispatchShards   string = "MA_DISPATCH_SHARDS"
	EnvKeyMADispatchQueue    string = "MA_DISPATCH_QUEUE_SIZE"
	EnvKeyMAUploadRate       string = "MA_UPLOAD_RATE"
	EnvKeyMAUploadBurst      string = "MA_UPLOAD_BURST"
	EnvKeyMARedisAddr        string = "MA_REDIS_ADDR"
	EnvKeyMANatsURL          string = "MA_NATS_URL"
	EnvKeyMALogDir           string = "MA_LOG_DIR"
	EnvKeyMALogLevel         string = "MA_LOG_LEVEL"

	DefaultCloudURL string = "http://www.data199.com/gateway/put"

	LoggerNameProxyCore     string = "proxy_core"
	LoggerNameRegistry      string = "registry"
	LoggerNameDispatcher    string = "dispatcher"
	LoggerNameRelay         string = "relay"
	LoggerNameDiscovery     string = "discovery"
	LoggerNameStore         string = "store"
	LoggerNameSink          string = "sink"
	LoggerNameWebsocket     string = "websocket"
	LoggerNameRestfulServer string = "restful_server"
	LoggerNameGrpcServer    string = "grpc_server"

	LoggerFieldCategory   string = "category"
	LoggerFieldGatewayID  string = "gateway_id"
	LoggerFieldSensorID   string = "sensor_id"
	LoggerCategoryUpload  string = "upload"
	LoggerCategorySetup   string = "setup"
	LoggerCategoryMonitor string = "monitor"
	LoggerCategorySweep   string = "sweep"
)
