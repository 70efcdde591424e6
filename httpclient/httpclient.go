package httpclient

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/valyala/fasthttp"
)

var (
	ErrStatusCodeMismatch  = errors.New("status code mismatch")
	ErrContentTypeMismatch = errors.New("content type mismatch")
)

// Header is an additional request header.
type Header struct {
	Key   string
	Value string
}

// MakePost posts out as json and decodes json response in to in.
// Response body is not decoded when in is nil or the response has no content.
func MakePost(timeout time.Duration, url string, out, in any, headers ...Header) error {
	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	for _, h := range headers {
		req.Header.Set(h.Key, h.Value)
	}
	raw, err := json.Marshal(out)
	if err != nil {
		return err
	}
	req.SetBody(raw)

	return do(timeout, req, in)
}

// MakeGet requests url and decodes json response in to in.
func MakeGet(timeout time.Duration, url string, in any, headers ...Header) error {
	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)
	for _, h := range headers {
		req.Header.Set(h.Key, h.Value)
	}

	return do(timeout, req, in)
}

func do(timeout time.Duration, req *fasthttp.Request, in any) error {
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	if err := fasthttp.DoTimeout(req, resp, timeout); err != nil {
		return err
	}

	switch resp.StatusCode() {
	case fasthttp.StatusOK, fasthttp.StatusCreated, fasthttp.StatusAccepted:
	case fasthttp.StatusNoContent:
		return nil
	default:
		return errors.Join(
			ErrStatusCodeMismatch,
			fmt.Errorf("expected status code %d but got %d", fasthttp.StatusOK, resp.StatusCode()))
	}

	if in == nil {
		return nil
	}

	contentType := resp.Header.Peek("Content-Type")
	if !bytes.HasPrefix(contentType, []byte("application/json")) {
		return errors.Join(
			ErrContentTypeMismatch,
			fmt.Errorf("expected content type application/json but got %s", contentType))
	}

	return json.Unmarshal(resp.Body(), in)
}
