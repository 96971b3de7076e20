package b2

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mdouchement/logger"
	"github.com/pkg/errors"
)

const (
	DefaultBaseURL = "https://api.backblazeb2.com"

	apiPath = "/b2api/v2"

	// The store caps a listing page at 1000 entries; anything beyond
	// comes back through the nextFileName cursor.
	maxFileCount = 1000
)

type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     logger.Logger
}

// Client speaks the store's native API: an authorize handshake followed
// by token-authenticated JSON calls against the returned apiUrl.
type Client struct {
	baseURL string
	http    *http.Client
	log     logger.Logger
}

func New(opts Options) *Client {
	c := &Client{
		baseURL: opts.BaseURL,
		http:    opts.HTTPClient,
		log:     opts.Logger,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 60 * time.Second}
	}
	return c
}

// Session holds the transient credentials for one run. It is never
// persisted and dies with the process.
type Session struct {
	AccountID string
	APIURL    string
	Token     string
	Allowed   BucketScope
}

// BucketScope is the bucket restriction embedded in an application key,
// empty for account-wide keys.
type BucketScope struct {
	BucketID   string
	BucketName string
}

// FileVersion identifies one stored version. Deletion must address the
// id, not just the name, because a bucket may retain several versions
// per name.
type FileVersion struct {
	FileName        string `json:"fileName"`
	FileID          string `json:"fileId"`
	UploadTimestamp int64  `json:"uploadTimestamp"`
}

// Authorize exchanges the account id and key for a session token. The
// basic credential is used for this call only; everything after uses the
// returned token against the returned API URL.
func (c *Client) Authorize(ctx context.Context, accountID, accountKey string) (*Session, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+apiPath+"/b2_authorize_account", nil)
	if err != nil {
		return nil, &AuthError{Err: err}
	}
	cred := base64.StdEncoding.EncodeToString([]byte(accountID + ":" + accountKey))
	req.Header.Set("Authorization", "Basic "+cred)

	c.log.Infof("authorizing account %s against %s", accountID, c.baseURL)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &AuthError{Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &AuthError{Status: resp.StatusCode, Message: readBody(resp.Body)}
	}

	var body struct {
		AccountID          string `json:"accountId"`
		AuthorizationToken string `json:"authorizationToken"`
		APIURL             string `json:"apiUrl"`
		Allowed            struct {
			BucketID   string `json:"bucketId"`
			BucketName string `json:"bucketName"`
		} `json:"allowed"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, &AuthError{Err: errors.Wrap(err, "decode authorize response")}
	}
	return &Session{
		AccountID: body.AccountID,
		APIURL:    body.APIURL,
		Token:     body.AuthorizationToken,
		Allowed: BucketScope{
			BucketID:   body.Allowed.BucketID,
			BucketName: body.Allowed.BucketName,
		},
	}, nil
}

// ResolveBucket maps a bucket name to its id. A key already scoped to
// the requested bucket answers from the session without a listing call,
// which such restricted keys may be forbidden from making.
func (c *Client) ResolveBucket(ctx context.Context, s *Session, bucket string) (string, error) {
	if s.Allowed.BucketID != "" && s.Allowed.BucketName == bucket {
		return s.Allowed.BucketID, nil
	}

	var out struct {
		Buckets []struct {
			BucketID   string `json:"bucketId"`
			BucketName string `json:"bucketName"`
		} `json:"buckets"`
	}
	in := map[string]any{"accountId": s.AccountID}
	if err := c.call(ctx, s, "b2_list_buckets", in, &out); err != nil {
		return "", errors.Wrap(err, "list buckets")
	}
	for _, b := range out.Buckets {
		if b.BucketName == bucket {
			return b.BucketID, nil
		}
	}
	return "", &NotFoundError{Bucket: bucket}
}

// ListFileNames returns every version under prefix, following the
// nextFileName cursor until the store signals exhaustion. The result is
// complete, in the store's listing order.
func (c *Client) ListFileNames(ctx context.Context, s *Session, bucketID, prefix string) ([]FileVersion, error) {
	var all []FileVersion
	cursor := ""
	for {
		in := map[string]any{
			"bucketId":     bucketID,
			"prefix":       prefix,
			"maxFileCount": maxFileCount,
		}
		if cursor != "" {
			in["startFileName"] = cursor
		}
		var out struct {
			Files        []FileVersion `json:"files"`
			NextFileName *string       `json:"nextFileName"`
		}
		c.log.Infof("listing bucket %s prefix %q cursor %q", bucketID, prefix, cursor)
		if err := c.call(ctx, s, "b2_list_file_names", in, &out); err != nil {
			if ae, ok := err.(*apiError); ok {
				return nil, &ListError{Status: ae.Status, Message: ae.Message}
			}
			return nil, &ListError{Err: err}
		}
		all = append(all, out.Files...)
		if out.NextFileName == nil || *out.NextFileName == "" {
			return all, nil
		}
		cursor = *out.NextFileName
	}
}

// DeleteFileVersion removes one specific version.
func (c *Client) DeleteFileVersion(ctx context.Context, s *Session, fileName, fileID string) error {
	in := map[string]any{"fileName": fileName, "fileId": fileID}
	c.log.Infof("deleting remote version %s (%s)", fileName, fileID)
	if err := c.call(ctx, s, "b2_delete_file_version", in, &struct{}{}); err != nil {
		if ae, ok := err.(*apiError); ok {
			return &DeleteError{FileName: fileName, FileID: fileID, Status: ae.Status, Message: ae.Message}
		}
		return &DeleteError{FileName: fileName, FileID: fileID, Err: err}
	}
	return nil
}

// apiError is a non-2xx response from the store, re-typed per operation
// by the caller.
type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("b2: status %d: %s", e.Status, e.Message)
}

// call posts one token-authenticated JSON request against the session's
// API URL.
func (c *Client) call(ctx context.Context, s *Session, op string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return errors.Wrapf(err, "encode %s request", op)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.APIURL+apiPath+"/"+op, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrapf(err, "build %s request", op)
	}
	req.Header.Set("Authorization", s.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s request", op)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &apiError{Status: resp.StatusCode, Message: readBody(resp.Body)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "decode %s response", op)
	}
	return nil
}

func readBody(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return fmt.Sprintf("<unreadable body: %v>", err)
	}
	return string(b)
}
