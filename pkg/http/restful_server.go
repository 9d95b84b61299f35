package http

import (
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"liyu1981.xyz/mobilealerts-proxy/pkg/proxy"
	"liyu1981.xyz/mobilealerts-proxy/pkg/websocket"
)

type RestfulServer struct {
	Server           *gin.Engine
	Proxy            *proxy.Proxy
	RateLimiterStore *proxy.RateLimiterStore
	Hub              *websocket.Hub
}

func (rs *RestfulServer) GetLimiter(gatewayID string) *rate.Limiter {
	if rs.RateLimiterStore == nil {
		return nil
	} else {
		return rs.RateLimiterStore.GetLimiter(gatewayID)
	}
}

func (rs *RestfulServer) CheckGatewayLimiter(gatewayID string) bool {
	limiter := rs.GetLimiter(gatewayID)
	if limiter == nil {
		return true
	}
	return limiter.Allow()
}

func (rs *RestfulServer) SetLimiter(gatewayID string, gatewayRate float64, gatewayBurst int) {
	if rs.RateLimiterStore == nil {
		return
	}
	rs.RateLimiterStore.SetLimiter(gatewayID, rate.Limit(gatewayRate), gatewayBurst)
}

func (rs *RestfulServer) Setup() {
	rs.Server.GET("/healthz", rs.HealthCheck)
	rs.Server.GET("/metrics", rs.Metrics)

	// gateways talk to us as their HTTP proxy
	rs.Server.PUT(proxy.UploadPath, rs.PutGatewayData)
	rs.Server.POST(proxy.UploadPath, rs.PutGatewayData)

	rs.Server.GET("/gateways", rs.GetGateways)
	gateways := rs.Server.Group("/gateways/:gateway_id")
	{
		gateways.GET("", rs.GetGateway)
		gateways.PUT("/options", rs.PutGatewayOptions)
		gateways.POST("/limiter", rs.PostLimiter)
	}

	rs.Server.GET("/sensors", rs.GetSensors)
	sensors := rs.Server.Group("/sensors/:sensor_id")
	{
		sensors.GET("", rs.GetSensor)
		sensors.POST("", rs.PostSensor)
	}

	rs.Server.POST("/setup/discover", rs.PostSetupDiscover)

	if rs.Hub != nil {
		rs.Server.GET("/ws", rs.ServeWs)
	}
}
