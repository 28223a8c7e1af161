package v1

import (
	"bytes"
	"strconv"

	"golang.org/x/xerrors"
)

const (
	ScreenshotStatusInQueue    = "in_queue"
	ScreenshotStatusProcessing = "processing"
	ScreenshotStatusFinished   = "finished"
	ScreenshotStatusError      = "error"
)

// Int accepts both JSON numbers and numeric strings; the API is not
// consistent about which one it sends.
type Int int64

func (i *Int) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		*i = 0
		return nil
	}
	if v, err := strconv.ParseInt(string(b), 10, 64); err == nil {
		*i = Int(v)
		return nil
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return xerrors.Errorf("invalid integer %q: %w", b, err)
	}
	*i = Int(v)
	return nil
}

type Screenshot struct {
	ID            Int    `json:"id"`
	Status        string `json:"status"`
	Error         string `json:"error,omitempty"`
	Priority      Int    `json:"priority,omitempty"`
	URL           string `json:"url,omitempty"`
	FinalURL      string `json:"final_url,omitempty"`
	ScreenshotURL string `json:"screenshot_url,omitempty"`
	InstanceID    Int    `json:"instance_id,omitempty"`
	Size          string `json:"size,omitempty"`
	Width         Int    `json:"width,omitempty"`
	Height        Int    `json:"height,omitempty"`
	ResponseCode  Int    `json:"response_code,omitempty"`
	ContentType   string `json:"content_type,omitempty"`
	Shots         Int    `json:"shots,omitempty"`
	Cost          Int    `json:"cost,omitempty"`
}

func (s *Screenshot) Done() bool {
	return s.Status == ScreenshotStatusFinished || s.Status == ScreenshotStatusError
}

type Browser struct {
	ID         Int    `json:"id,omitempty"`
	Name       string `json:"name"`
	UserAgent  string `json:"user_agent"`
	Appname    string `json:"appname,omitempty"`
	Javascript Int    `json:"javascript,omitempty"`
	Mobile     Int    `json:"mobile,omitempty"`
}

type Instance struct {
	ID             Int     `json:"id"`
	Width          Int     `json:"width"`
	Height         Int     `json:"height"`
	Load           string  `json:"load,omitempty"`
	Type           string  `json:"type,omitempty"`
	Country        string  `json:"country,omitempty"`
	ScreenshotCost Int     `json:"screenshot_cost,omitempty"`
	Browser        Browser `json:"browser,omitempty"`
}

type Batch struct {
	ID        Int      `json:"id"`
	Status    string   `json:"status"`
	Error     string   `json:"error,omitempty"`
	Count     Int      `json:"count,omitempty"`
	Processed Int      `json:"processed,omitempty"`
	Failed    Int      `json:"failed,omitempty"`
	URLs      []string `json:"urls,omitempty"`
}

type Crawl struct {
	ID        Int      `json:"id"`
	Status    string   `json:"status"`
	Error     string   `json:"error,omitempty"`
	Domain    string   `json:"domain,omitempty"`
	URL       string   `json:"url,omitempty"`
	Max       Int      `json:"max,omitempty"`
	Count     Int      `json:"count,omitempty"`
	Processed Int      `json:"processed,omitempty"`
	Failed    Int      `json:"failed,omitempty"`
	URLs      []string `json:"urls,omitempty"`
}

type Account struct {
	Balance             Int `json:"balance"`
	Instances           Int `json:"instances,omitempty"`
	Screenshots         Int `json:"screenshots,omitempty"`
	Browsers            Int `json:"browsers,omitempty"`
	FreeScreenshotsLeft Int `json:"free_screenshots_left,omitempty"`
	PrivateInstances    Int `json:"private_instances,omitempty"`
	HostingBrowshot     Int `json:"hosting_browshot,omitempty"`
}
