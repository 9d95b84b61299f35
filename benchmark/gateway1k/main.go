package main

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	maGrpc "liyu1981.xyz/mobilealerts-proxy/pkg/grpc"
	"liyu1981.xyz/mobilealerts-proxy/pkg/protocol"
)

var maxGateways int = 1000
var sensorsPerGateway int = 4
var uploadsPerGateway int = 5
var httpHostPort string = "127.0.0.1:8080"
var grpcHostPort string = "127.0.0.1:8081"

var grpcClient *maGrpc.SensorServiceClient

var rnd *rand.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
var rndMu sync.Mutex

var failures atomic.Int64

type gateway struct {
	id      string
	sensors []string
	counter int
}

// newID is a random 12 digit hex id starting with prefix.
func newID(prefix string) string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return prefix + id[len(prefix):12]
}

func main() {
	gateways := make([]*gateway, maxGateways)
	for i := range maxGateways {
		gw := &gateway{id: newID("001D")}
		for range sensorsPerGateway {
			gw.sensors = append(gw.sensors, newID("02"))
		}
		gateways[i] = gw
	}
	fmt.Printf("generated %v gateways with %v sensors each\n", maxGateways, sensorsPerGateway)

	resp, err := http.Get(fmt.Sprintf("http://%s/healthz", httpHostPort))
	if err != nil {
		log.Fatal("Failed to connect to HTTP server:", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Fatal("HTTP server not available")
	}
	fmt.Printf("http server verified\n")

	conn, err := grpc.NewClient(grpcHostPort, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatal("Failed to connect to gRPC server:", err)
	}
	defer conn.Close()
	grpcClient = maGrpc.NewSensorServiceClient(conn)
	fmt.Printf("gRPC client created\n")

	startTime := time.Now()
	wg := sync.WaitGroup{}
	for i := range maxGateways {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hello(gateways[i])
		}()
	}
	wg.Wait()
	usedTime := time.Since(startTime)

	fmt.Printf(
		"\rsent hello for %v gateways: used time=%v seconds, throughput=%v uploads/second\n",
		maxGateways, usedTime.Seconds(), float64(maxGateways)/usedTime.Seconds(),
	)

	startTime = time.Now()
	wg = sync.WaitGroup{}
	for i := range maxGateways {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range uploadsPerGateway {
				uploadFrames(gateways[i])
				if flipCoin() {
					querySensor(gateways[i])
				}
				time.Sleep(time.Duration(100+rndInt(1000)) * time.Millisecond)
			}
		}()
	}
	wg.Wait()
	usedTime = time.Since(startTime)

	uploads := maxGateways * uploadsPerGateway
	fmt.Printf(
		"\n\ruploaded %v data packets: used time=%v seconds, throughput=%v uploads/second, failures=%v\n",
		uploads, usedTime.Seconds(), float64(uploads)/usedTime.Seconds(), failures.Load(),
	)

	list, err := grpcClient.ListSensors(context.Background(), &emptypb.Empty{})
	if err != nil {
		log.Fatal("Failed to list sensors:", err)
	}
	fmt.Printf("proxy reports %v sensors\n", len(list.GetValues()))
}

func flipCoin() bool {
	return rndInt(100000)%2 == 0
}

func rndInt(n int32) int32 {
	rndMu.Lock()
	defer rndMu.Unlock()
	return rnd.Int31n(n)
}

func put(gatewayID, code string, body []byte) {
	req, err := http.NewRequest(http.MethodPut, fmt.Sprintf("http://%s/gateway/put", httpHostPort), bytes.NewReader(body))
	if err != nil {
		panic(err)
	}
	req.Header.Set(protocol.IdentifyHeader, fmt.Sprintf("%06X:%s:%s", rndInt(0xFFFFFF), gatewayID, code))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		failures.Add(1)
		fmt.Printf("\nerror: %v\n", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		failures.Add(1)
		fmt.Printf("\nresponse status code != 200: %v\n", resp.Status)
	}
}

func hello(gw *gateway) {
	put(gw.id, "C0", nil)
}

func uploadFrames(gw *gateway) {
	gw.counter++
	var body []byte
	for _, sensorID := range gw.sensors {
		// temperature in tenths of a degree, 0.0 to 40.0
		t := rndInt(400)
		hi, lo := byte(t>>8), byte(t)
		data := append(protocol.TxWord(gw.counter, false, false), hi, lo, hi, lo)
		frame, err := protocol.NewFrame(time.Now(), sensorID, data)
		if err != nil {
			panic(err)
		}
		body = append(body, frame...)
	}
	put(gw.id, "00", body)
	fmt.Printf("\ruploaded %v frames for gateway %v", len(gw.sensors), gw.id)
}

func querySensor(gw *gateway) {
	sensorID := gw.sensors[rndInt(int32(len(gw.sensors)))]
	if _, err := grpcClient.GetSensor(context.Background(), wrapperspb.String(sensorID)); err != nil {
		fmt.Printf("\nerror: %v\n", err)
	}
}
