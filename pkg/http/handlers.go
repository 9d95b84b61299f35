package http

import (
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	z "github.com/Oudwins/zog"
	"github.com/Oudwins/zog/zhttp"

	"liyu1981.xyz/mobilealerts-proxy/pkg/common"
	"liyu1981.xyz/mobilealerts-proxy/pkg/metrics"
	"liyu1981.xyz/mobilealerts-proxy/pkg/models"
	"liyu1981.xyz/mobilealerts-proxy/pkg/protocol"
	"liyu1981.xyz/mobilealerts-proxy/pkg/proxy"
	"liyu1981.xyz/mobilealerts-proxy/pkg/websocket"
)

// uploads are a few frames, this only bounds misbehaving clients
const maxUploadBytes = 1 << 20

func identifyHeader(r *http.Request) string {
	if v := r.Header.Get(protocol.IdentifyHeader); v != "" {
		return v
	}
	return r.Header.Get("Identify")
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// PutGatewayData takes one gateway upload and answers it locally.
func (rs *RestfulServer) PutGatewayData(c *gin.Context) {
	identify := identifyHeader(c.Request)

	limiterKey := remoteHost(c.Request)
	if id, err := protocol.ParseIdentify(identify); err == nil {
		limiterKey = id.GatewayID
	}
	if !rs.CheckGatewayLimiter(limiterKey) {
		metrics.UploadsRejected.WithLabelValues("rate_limited").Inc()
		c.Status(http.StatusTooManyRequests)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes))
	if err != nil {
		logger := common.GetLoggerWith(common.LoggerNameRestfulServer,
			zap.String(common.LoggerFieldCategory, common.LoggerCategoryUpload),
			zap.String("remote", remoteHost(c.Request)))
		// a cut body can be neither decoded nor relayed as is
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			metrics.UploadsRejected.WithLabelValues("too_large").Inc()
			logger.Warn("Upload body too large", zap.Int64("limit", tooLarge.Limit))
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		logger.Warn("Failed to read upload body", zap.Error(err))
		c.Status(http.StatusBadRequest)
		return
	}

	rs.Proxy.HandleUpload(c.Request.Context(), proxy.Upload{
		Identify:   identify,
		RemoteAddr: remoteHost(c.Request),
		Header:     c.Request.Header.Clone(),
		Payload:    models.NewPayload(body),
	})

	c.Data(http.StatusOK, "application/octet-stream", protocol.BuildResponse(time.Now()))
}

func (rs *RestfulServer) GetGateways(c *gin.Context) {
	c.JSON(http.StatusOK, rs.Proxy.Registry.Gateways())
}

func (rs *RestfulServer) GetGateway(c *gin.Context) {
	gw, ok := rs.Proxy.Registry.Gateway(common.NormalizeID(c.Param("gateway_id")))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": common.ErrorLabel(common.ErrUnknownGateway)})
		return
	}
	c.JSON(http.StatusOK, gw)
}

type GatewayOptionsRequest struct {
	SendDataToCloud *bool `json:"send_data_to_cloud" binding:"required"`
}

func (rs *RestfulServer) PutGatewayOptions(c *gin.Context) {
	var req GatewayOptionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	gw, err := rs.Proxy.SetGatewayOptions(c.Param("gateway_id"), *req.SendDataToCloud)
	if errors.Is(err, common.ErrUnknownGateway) {
		c.JSON(http.StatusNotFound, gin.H{"error": common.ErrorLabel(err)})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gw)
}

type LimiterRequest struct {
	Rate  float64 `json:"rate"`
	Burst int     `json:"burst"`
}

var limiterRequestSchema = z.Struct(z.Shape{
	"rate":  z.Float64().Required(),
	"burst": z.Int().Required(),
})

func (rs *RestfulServer) PostLimiter(c *gin.Context) {
	gatewayID := common.NormalizeID(c.Param("gateway_id"))

	var req LimiterRequest
	if err := limiterRequestSchema.Parse(zhttp.Request(c.Request), &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err})
		return
	}

	rs.SetLimiter(gatewayID, req.Rate, req.Burst)

	c.Status(http.StatusOK)
}

func (rs *RestfulServer) GetSensors(c *gin.Context) {
	sensors := rs.Proxy.Registry.Sensors()
	if gatewayID := c.Query("gateway_id"); gatewayID != "" {
		gatewayID = common.NormalizeID(gatewayID)
		filtered := sensors[:0]
		for _, s := range sensors {
			if s.GatewayID == gatewayID {
				filtered = append(filtered, s)
			}
		}
		sensors = filtered
	}
	if sensors == nil {
		sensors = []models.SensorInfo{}
	}
	c.JSON(http.StatusOK, sensors)
}

func (rs *RestfulServer) GetSensor(c *gin.Context) {
	sensor, ok := rs.Proxy.Registry.Sensor(c.Param("sensor_id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": common.ErrorLabel(common.ErrUnknownSensor)})
		return
	}
	c.JSON(http.StatusOK, sensor)
}

type SensorRequest struct {
	GatewayID string `json:"gateway_id" zog:"gateway_id"`
	Name      string `json:"name" zog:"name"`
	Kind      string `json:"kind" zog:"kind"`
}

var sensorKinds = []string{
	string(models.KindThermo),
	string(models.KindThermoHygro),
	string(models.KindThermoHygroWet),
	string(models.KindAirQuality),
	string(models.KindThermoHygroPool),
	string(models.KindThermoHygroOutdoor),
	string(models.KindRain),
	string(models.KindThermoHygroCable),
	string(models.KindAlarm),
	string(models.KindWind),
	string(models.KindDoorWindow),
	string(models.KindKeyPress),
	string(models.KindPressure),
}

var sensorRequestSchema = z.Struct(z.Shape{
	"GatewayID": z.String().Required().Len(protocol.GatewayIDLength),
	"Name":      z.String().Optional(),
	"Kind":      z.String().Required().OneOf(sensorKinds),
})

// PostSensor registers a sensor ahead of its first frame.
func (rs *RestfulServer) PostSensor(c *gin.Context) {
	sensorID := common.NormalizeID(c.Param("sensor_id"))
	if !common.IsHexID(sensorID, protocol.GatewayIDLength) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid sensor id"})
		return
	}

	var req SensorRequest
	if err := sensorRequestSchema.Parse(zhttp.Request(c.Request), &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err})
		return
	}

	sensor, err := rs.Proxy.RegisterSensor(req.GatewayID, sensorID, models.SensorKind(req.Kind), req.Name)
	if errors.Is(err, common.ErrKindConflict) {
		c.JSON(http.StatusConflict, gin.H{"error": common.ErrorLabel(err), "message": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, sensor)
}

type SetupRequest struct {
	GatewayID       string `json:"gateway_id"`
	Address         string `json:"address"`
	SendDataToCloud *bool  `json:"send_data_to_cloud"`
}

// PostSetupDiscover runs the gateway setup flow. An empty body discovers.
func (rs *RestfulServer) PostSetupDiscover(c *gin.Context) {
	var req SetupRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	gw, err := rs.Proxy.SetupGateway(c.Request.Context(), proxy.SetupOptions{
		GatewayID:       req.GatewayID,
		Address:         req.Address,
		SendDataToCloud: req.SendDataToCloud,
	})
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gw)
	case errors.Is(err, common.ErrNoGateways):
		c.JSON(http.StatusNotFound, gin.H{"error": common.ErrorLabel(err), "message": err.Error()})
	case errors.Is(err, common.ErrMultipleGateways):
		c.JSON(http.StatusConflict, gin.H{"error": common.ErrorLabel(err), "message": err.Error()})
	default:
		c.JSON(http.StatusBadGateway, gin.H{"error": common.ErrorLabel(err), "message": err.Error()})
	}
}

func (rs *RestfulServer) ServeWs(c *gin.Context) {
	websocket.ServeWs(rs.Hub, c.Writer, c.Request)
}

func (rs *RestfulServer) Metrics(c *gin.Context) {
	promhttp.Handler().ServeHTTP(c.Writer, c.Request)
}

func (rs *RestfulServer) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
