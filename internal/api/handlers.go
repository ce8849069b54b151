package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/projectdiscovery/netscan/pkg/peerdiscovery/netrange"
	"github.com/projectdiscovery/netscan/pkg/registry"
	"github.com/projectdiscovery/netscan/pkg/scanner"
	"github.com/tidwall/gjson"
)

// httpStatus maps service errors to status codes
func httpStatus(err error) int {
	switch {
	case errors.Is(err, netrange.ErrInvalidNetworkFormat), errors.Is(err, netrange.ErrRangeTooLarge):
		return http.StatusBadRequest
	case errors.Is(err, scanner.ErrScanInProgress), errors.Is(err, scanner.ErrNoScanRunning):
		return http.StatusConflict
	case errors.Is(err, registry.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleScanStart(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	var network string
	if len(strings.TrimSpace(string(body))) > 0 {
		if !gjson.ValidBytes(body) {
			fail(c, http.StatusBadRequest, "invalid JSON body")
			return
		}
		parsed := gjson.ParseBytes(body)
		if !parsed.IsObject() {
			fail(c, http.StatusBadRequest, "request body must be a JSON object")
			return
		}
		field := parsed.Get("network")
		if field.Exists() && field.Type != gjson.String && field.Type != gjson.Null {
			fail(c, http.StatusBadRequest, "network must be a string")
			return
		}
		network = strings.TrimSpace(field.String())
	}

	spec, err := s.service.StartScan(network)
	if err != nil {
		code := httpStatus(err)
		if code == http.StatusInternalServerError {
			// Local network detection failed
			code = http.StatusBadRequest
		}
		fail(c, code, err.Error())
		return
	}
	ok(c, gin.H{
		"network": spec,
		"message": fmt.Sprintf("Scan started for %s", spec),
	})
}

func (s *Server) handleScanCancel(c *gin.Context) {
	if err := s.service.Cancel(); err != nil {
		fail(c, httpStatus(err), err.Error())
		return
	}
	ok(c, gin.H{"message": "Scan cancelled"})
}

func (s *Server) handleStatus(c *gin.Context) {
	ok(c, s.service.Status())
}

func (s *Server) handleNetwork(c *gin.Context) {
	spec, ip, mask, err := s.service.SuggestedNetwork()
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	ok(c, gin.H{"network": spec, "ip": ip, "mask": mask})
}

func (s *Server) handleResultsList(c *gin.Context) {
	ok(c, s.service.Results())
}

// scanID parses the :id parameter; anything but a positive integer is unknown
func scanID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		fail(c, http.StatusNotFound, registry.ErrNotFound.Error())
		return 0, false
	}
	return id, true
}

func (s *Server) handleResultDetail(c *gin.Context) {
	id, valid := scanID(c)
	if !valid {
		return
	}
	record, err := s.service.Result(id)
	if err != nil {
		fail(c, httpStatus(err), err.Error())
		return
	}
	ok(c, record)
}

func (s *Server) handleResultsClear(c *gin.Context) {
	s.service.ClearResults()
	ok(c, gin.H{"message": "Results cleared"})
}

func (s *Server) handleResultExport(c *gin.Context) {
	id, valid := scanID(c)
	if !valid {
		return
	}
	data, err := s.service.Export(id)
	if err != nil {
		fail(c, httpStatus(err), err.Error())
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=netscan_%d.json", id))
	c.Data(http.StatusOK, "application/json", data)
}
