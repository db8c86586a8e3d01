package r2s3

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"
)

// Client uploads snapshot files to an S3-compatible bucket (Cloudflare R2,
// MinIO, AWS). The mirror only ever PUTs whole objects, so the client signs
// exactly one request shape with SigV4 and needs nothing beyond net/http.
type Client struct {
	endpoint   string
	bucket     string
	creds      sigv4
	httpClient *http.Client
}

// sigv4 signs a PUT request for region "auto", service "s3", with the fixed
// header set host;x-amz-content-sha256;x-amz-date.
type sigv4 struct {
	keyID  string
	secret string
}

const amzTimeLayout = "20060102T150405Z"

func New(endpoint, bucket, accessKeyID, secretAccessKey string) (*Client, error) {
	endpoint = strings.TrimSpace(endpoint)
	bucket = strings.TrimSpace(bucket)
	creds := sigv4{
		keyID:  strings.TrimSpace(accessKeyID),
		secret: strings.TrimSpace(secretAccessKey),
	}
	if endpoint == "" || bucket == "" || creds.keyID == "" || creds.secret == "" {
		return nil, fmt.Errorf("endpoint/bucket/access key/secret key are required")
	}
	if !strings.Contains(endpoint, "://") {
		endpoint = "https://" + endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid endpoint: %s", endpoint)
	}
	return &Client{
		endpoint:   strings.TrimRight(u.String(), "/"),
		bucket:     bucket,
		creds:      creds,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}, nil
}

// PutFile uploads localPath under objectKey in the bucket.
func (c *Client) PutFile(ctx context.Context, objectKey, localPath string) error {
	objectKey = cleanObjectKey(objectKey)
	if objectKey == "" {
		return fmt.Errorf("empty object key")
	}

	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return err
	}
	if st.IsDir() {
		return fmt.Errorf("path is directory: %s", localPath)
	}

	// The payload hash is both a header and part of the signature, so the
	// file is read twice: once to hash, once as the request body.
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return err
	}
	payloadHash := hex.EncodeToString(h.Sum(nil))
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut,
		c.endpoint+"/"+c.bucket+"/"+escapeKey(objectKey), f)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.ContentLength = st.Size()
	c.creds.authorize(req, payloadHash, time.Now().UTC())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 8*1024))
	return fmt.Errorf("put failed status=%d key=%s body=%s",
		resp.StatusCode, objectKey, strings.TrimSpace(string(body)))
}

// authorize stamps the amz headers and the Authorization header onto req.
func (s sigv4) authorize(req *http.Request, payloadHash string, now time.Time) {
	host := req.URL.Host
	amzDate := now.Format(amzTimeLayout)
	dateStamp := amzDate[:8]

	req.Header.Set("Host", host)
	req.Header.Set("x-amz-content-sha256", payloadHash)
	req.Header.Set("x-amz-date", amzDate)

	const signedHeaders = "host;x-amz-content-sha256;x-amz-date"
	canonical := req.Method + "\n" +
		req.URL.EscapedPath() + "\n" +
		"\n" + // no query string on a plain PUT
		"host:" + host + "\n" +
		"x-amz-content-sha256:" + payloadHash + "\n" +
		"x-amz-date:" + amzDate + "\n" +
		"\n" +
		signedHeaders + "\n" +
		payloadHash

	scope := dateStamp + "/auto/s3/aws4_request"
	canonicalSum := sha256.Sum256([]byte(canonical))
	stringToSign := "AWS4-HMAC-SHA256\n" + amzDate + "\n" + scope + "\n" +
		hex.EncodeToString(canonicalSum[:])

	key := []byte("AWS4" + s.secret)
	for _, part := range []string{dateStamp, "auto", "s3", "aws4_request"} {
		key = hmacSHA256(key, part)
	}
	req.Header.Set("Authorization", fmt.Sprintf(
		"AWS4-HMAC-SHA256 Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		s.keyID, scope, signedHeaders, hex.EncodeToString(hmacSHA256(key, stringToSign)),
	))
}

func hmacSHA256(key []byte, data string) []byte {
	h := hmac.New(sha256.New, key)
	_, _ = h.Write([]byte(data))
	return h.Sum(nil)
}

// cleanObjectKey normalizes a mirror-relative key: forward slashes only, no
// leading slash, and nothing that escapes the prefix. Returns "" for keys
// that cannot be made safe.
func cleanObjectKey(key string) string {
	key = strings.TrimSpace(strings.ReplaceAll(key, "\\", "/"))
	key = strings.TrimPrefix(key, "/")
	if key == "" {
		return ""
	}
	clean := strings.TrimPrefix(path.Clean("/"+key), "/")
	if clean == "." || strings.HasPrefix(clean, "../") {
		return ""
	}
	return clean
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i := range parts {
		parts[i] = url.PathEscape(parts[i])
	}
	return strings.Join(parts, "/")
}
