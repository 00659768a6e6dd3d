package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kantinku/kantinku-api/utils"
)

const fcmSendURL = "https://fcm.googleapis.com/fcm/send"

// PushSender mengirim notifikasi push ke sekumpulan device token.
// Mengembalikan token yang ditolak FCM supaya caller bisa membersihkannya.
type PushSender interface {
	Send(ctx context.Context, tokens []string, title, body string, data map[string]string) (invalid []string, err error)
}

// FCMService adalah PushSender di atas FCM legacy HTTP API.
type FCMService struct {
	serverKey  string
	httpClient *http.Client
}

func NewFCMService(serverKey string) *FCMService {
	return &FCMService{
		serverKey: serverKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type fcmPayload struct {
	RegistrationIDs []string          `json:"registration_ids"`
	Notification    fcmNotification   `json:"notification"`
	Data            map[string]string `json:"data,omitempty"`
}

type fcmNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type fcmResponse struct {
	Success int `json:"success"`
	Failure int `json:"failure"`
	Results []struct {
		Error string `json:"error"`
	} `json:"results"`
}

// Send mengirim satu multicast. Token dengan error NotRegistered atau
// InvalidRegistration dikembalikan lewat invalid agar dihapus dari store.
func (s *FCMService) Send(ctx context.Context, tokens []string, title, body string, data map[string]string) ([]string, error) {
	if len(tokens) == 0 {
		return nil, nil
	}

	payload := fcmPayload{
		RegistrationIDs: tokens,
		Notification:    fcmNotification{Title: title, Body: body},
		Data:            data,
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal fcm payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fcmSendURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("build fcm request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "key="+s.serverKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, &UpstreamError{Op: "fcm send", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read fcm response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &UpstreamError{Op: "fcm send", Err: fmt.Errorf("status %d: %s", resp.StatusCode, respBody)}
	}

	var fcmResp fcmResponse
	if err := json.Unmarshal(respBody, &fcmResp); err != nil {
		return nil, fmt.Errorf("unmarshal fcm response: %w", err)
	}

	var invalid []string
	for i, res := range fcmResp.Results {
		if i >= len(tokens) {
			break
		}
		switch res.Error {
		case "NotRegistered", "InvalidRegistration":
			invalid = append(invalid, tokens[i])
		case "":
			// ok
		default:
			utils.ErrorLogger.Printf("fcm delivery error untuk token %s: %s", tokens[i][:min(8, len(tokens[i]))], res.Error)
		}
	}
	return invalid, nil
}
