package batchsim

import (
	"crypto/md5"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

type containerRecord struct {
	name   string
	blobs  map[string][]byte
	blocks map[string][]byte // uncommitted, keyed by blob name + "/" + block id
}

// blockList is the body of a Put Block List request.
type blockList struct {
	Committed   []string `xml:"Committed"`
	Uncommitted []string `xml:"Uncommitted"`
	Latest      []string `xml:"Latest"`
}

func (s *Simulator) handleContainer(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("restype") != "container" {
		respondBlobError(w, http.StatusBadRequest, "InvalidQueryParameterValue", "restype must be container")
		return
	}
	name := chi.URLParam(r, "container")

	s.blobMu.Lock()
	defer s.blobMu.Unlock()

	switch r.Method {
	case http.MethodPut:
		if !s.containers.put(name, &containerRecord{name: name, blobs: map[string][]byte{}, blocks: map[string][]byte{}}) {
			respondBlobError(w, http.StatusConflict, "ContainerAlreadyExists", "The specified container already exists.")
			return
		}
		s.logger.Info("container created", "container", name)
		setBlobHeaders(w, s.now(), nil)
		w.WriteHeader(http.StatusCreated)
	case http.MethodDelete:
		if !s.containers.delete(name) {
			respondBlobError(w, http.StatusNotFound, "ContainerNotFound", "The specified container does not exist.")
			return
		}
		s.logger.Info("container deleted", "container", name)
		w.WriteHeader(http.StatusAccepted)
	default:
		if _, ok := s.containers.get(name); !ok {
			respondBlobError(w, http.StatusNotFound, "ContainerNotFound", "The specified container does not exist.")
			return
		}
		setBlobHeaders(w, s.now(), nil)
		w.WriteHeader(http.StatusOK)
	}
}

func (s *Simulator) handlePutBlob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "container")
	blobName := blobParam(r)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		respondBlobError(w, http.StatusBadRequest, "InvalidInput", err.Error())
		return
	}

	s.blobMu.Lock()
	defer s.blobMu.Unlock()

	c, ok := s.containers.get(name)
	if !ok {
		respondBlobError(w, http.StatusNotFound, "ContainerNotFound", "The specified container does not exist.")
		return
	}

	q := r.URL.Query()
	switch q.Get("comp") {
	case "block":
		c.blocks[blobName+"/"+q.Get("blockid")] = body
		sum := md5.Sum(body)
		w.Header().Set("Content-MD5", base64.StdEncoding.EncodeToString(sum[:]))
	case "blocklist":
		var list blockList
		if err := xml.Unmarshal(body, &list); err != nil {
			respondBlobError(w, http.StatusBadRequest, "InvalidXmlDocument", err.Error())
			return
		}
		var data []byte
		ids := append(append(append([]string{}, list.Committed...), list.Uncommitted...), list.Latest...)
		for _, id := range ids {
			block, ok := c.blocks[blobName+"/"+id]
			if !ok {
				respondBlobError(w, http.StatusBadRequest, "InvalidBlockList", "The specified block list is invalid.")
				return
			}
			data = append(data, block...)
		}
		for _, id := range ids {
			delete(c.blocks, blobName+"/"+id)
		}
		c.blobs[blobName] = data
		setBlobHeaders(w, s.now(), data)
	case "":
		c.blobs[blobName] = body
		setBlobHeaders(w, s.now(), body)
		sum := md5.Sum(body)
		w.Header().Set("Content-MD5", base64.StdEncoding.EncodeToString(sum[:]))
	default:
		respondBlobError(w, http.StatusBadRequest, "UnsupportedQueryParameter", "comp="+q.Get("comp"))
		return
	}
	w.Header().Set("x-ms-request-server-encrypted", "true")
	w.WriteHeader(http.StatusCreated)
}

func (s *Simulator) handleGetBlob(w http.ResponseWriter, r *http.Request) {
	if code, msg := s.authorizeRead(r); code != "" {
		respondBlobError(w, http.StatusForbidden, code, msg)
		return
	}
	name := chi.URLParam(r, "container")
	blobName := blobParam(r)

	s.blobMu.Lock()
	c, ok := s.containers.get(name)
	var data []byte
	var found bool
	if ok {
		data, found = c.blobs[blobName]
	}
	s.blobMu.Unlock()

	if !ok {
		respondBlobError(w, http.StatusNotFound, "ContainerNotFound", "The specified container does not exist.")
		return
	}
	if !found {
		respondBlobError(w, http.StatusNotFound, "BlobNotFound", "The specified blob does not exist.")
		return
	}
	setBlobHeaders(w, s.now(), data)
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", fmt.Sprint(len(data)))
	w.Header().Set("x-ms-blob-type", "BlockBlob")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// authorizeRead checks a shared access signature's window and permissions
// against the simulator clock. Requests carrying an Authorization header are
// accepted as-is. Signatures are not verified.
func (s *Simulator) authorizeRead(r *http.Request) (code, message string) {
	q := r.URL.Query()
	if q.Get("sig") == "" {
		if r.Header.Get("Authorization") != "" {
			return "", ""
		}
		return "NoAuthenticationInformation", "Server failed to authenticate the request. Please refer to the information in the www-authenticate header."
	}
	now := s.now()
	expiry, err := time.Parse(time.RFC3339, q.Get("se"))
	if err != nil {
		return "AuthenticationFailed", "Signed expiry time is missing or malformed."
	}
	if !now.Before(expiry) {
		return "AuthenticationFailed", "Signed expiry time [" + expiry.Format(time.RFC1123) + "] must be after signed start time and current time [" + now.Format(time.RFC1123) + "]"
	}
	if st := q.Get("st"); st != "" {
		start, err := time.Parse(time.RFC3339, st)
		if err != nil || now.Before(start) {
			return "AuthenticationFailed", "Signed start time is in the future."
		}
	}
	if !strings.Contains(q.Get("sp"), "r") {
		return "AuthorizationPermissionMismatch", "This request is not authorized to perform this operation using this permission."
	}
	return "", ""
}

// blobParam returns the unescaped blob name; chi matches on the raw path.
func blobParam(r *http.Request) string {
	name := chi.URLParam(r, "*")
	if unescaped, err := url.PathUnescape(name); err == nil {
		return unescaped
	}
	return name
}

func setBlobHeaders(w http.ResponseWriter, now time.Time, data []byte) {
	w.Header().Set("ETag", fmt.Sprintf("\"0x%X\"", now.UnixNano()+int64(len(data))))
	w.Header().Set("Last-Modified", now.Format(http.TimeFormat))
	w.Header().Set("x-ms-version", "2023-11-03")
}

// ContainerExists reports whether the storage account has the container.
func (s *Simulator) ContainerExists(name string) bool {
	s.blobMu.Lock()
	defer s.blobMu.Unlock()
	_, ok := s.containers.get(name)
	return ok
}

// Blob returns a copy of a committed blob's contents.
func (s *Simulator) Blob(container, name string) ([]byte, bool) {
	s.blobMu.Lock()
	defer s.blobMu.Unlock()
	c, ok := s.containers.get(container)
	if !ok {
		return nil, false
	}
	data, ok := c.blobs[name]
	return append([]byte(nil), data...), ok
}
