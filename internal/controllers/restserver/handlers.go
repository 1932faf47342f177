package restserver

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/chrissnell/icewatch/internal/controllers/icingcache"
	"github.com/chrissnell/icewatch/internal/fmi"
	"github.com/chrissnell/icewatch/internal/log"
	"github.com/chrissnell/icewatch/internal/pipeline"
	"github.com/chrissnell/icewatch/internal/summary"
	"github.com/chrissnell/icewatch/pkg/config"
	"github.com/chrissnell/icewatch/pkg/responseformat"
	"github.com/gorilla/mux"
)

// Handlers contains all HTTP handlers for the REST server
type Handlers struct {
	controller *Controller
	formatter  *responseformat.Formatter
}

// NewHandlers creates a new handlers instance
func NewHandlers(ctrl *Controller) *Handlers {
	return &Handlers{
		controller: ctrl,
		formatter:  responseformat.NewFormatter(),
	}
}

// StationsResponse is the map view: one colourized summary per station
type StationsResponse struct {
	LastUpdated time.Time                `json:"last_updated"`
	RunID       string                   `json:"run_id"`
	Stations    []summary.StationSummary `json:"stations"`
}

// SeriesResponse carries the derived series of one station
type SeriesResponse struct {
	Station          summary.StationSummary `json:"station"`
	Start            time.Time              `json:"start"`
	End              time.Time              `json:"end"`
	RunID            string                 `json:"run_id,omitempty"`
	RepairedInstant  int                    `json:"repaired_instant"`
	RepairedFiltered int                    `json:"repaired_filtered"`
	Rows             []summary.Row          `json:"rows"`
}

// PanelsResponse carries the chart panels of one station
type PanelsResponse struct {
	Station summary.StationSummary `json:"station"`
	Panels  []summary.Panel        `json:"panels"`
}

// GetStations returns the cached summaries of all stations
func (h *Handlers) GetStations(w http.ResponseWriter, req *http.Request) {
	cache := h.controller.cache
	if cache.RefreshedAt().IsZero() {
		h.formatter.WriteError(w, http.StatusServiceUnavailable, "icing data is not available until the first refresh completes")
		return
	}

	resp := StationsResponse{
		LastUpdated: cache.RefreshedAt().UTC(),
		RunID:       cache.RunID(),
		Stations:    cache.Summaries(),
	}

	if err := h.formatter.WriteResponse(w, req, resp, map[string]string{"Cache-Control": "max-age=60"}); err != nil {
		log.Errorf("error encoding station summaries: %v", err)
	}
}

// GetStationSeries returns the cached derived series of one station
func (h *Handlers) GetStationSeries(w http.ResponseWriter, req *http.Request) {
	report, ok := h.cachedReport(w, req)
	if !ok {
		return
	}
	h.writeSeries(w, req, report, h.controller.cache.RunID())
}

// GetStationPanels returns the chart panels of one station from the cache
func (h *Handlers) GetStationPanels(w http.ResponseWriter, req *http.Request) {
	report, ok := h.cachedReport(w, req)
	if !ok {
		return
	}

	resp := PanelsResponse{
		Station: report.Summary,
		Panels:  summary.Panels(report.Result, ""),
	}
	if err := h.formatter.WriteResponse(w, req, resp, nil); err != nil {
		log.Errorf("error encoding panels: %v", err)
	}
}

// GetIcing fetches and computes one station on demand for an arbitrary range
func (h *Handlers) GetIcing(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()

	fmisid, err := strconv.Atoi(q.Get("fmisid"))
	if err != nil || fmisid <= 0 {
		h.formatter.WriteError(w, http.StatusBadRequest, "fmisid parameter is required")
		return
	}

	station, ok := h.controller.lookupStation(fmisid)
	if !ok {
		station = config.StationData{Name: strconv.Itoa(fmisid), FMISID: fmisid}
	}

	if s := q.Get("sensor"); s != "" {
		sensor, err := strconv.Atoi(s)
		if err != nil || sensor < 0 {
			h.formatter.WriteError(w, http.StatusBadRequest, "invalid sensor parameter")
			return
		}
		station.SensorID = sensor
	}

	start, end := fmi.DefaultRange(h.controller.now())
	if s := q.Get("start"); s != "" {
		if start, err = fmi.ParseTime(s); err != nil {
			h.formatter.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if s := q.Get("end"); s != "" {
		if end, err = fmi.ParseTime(s); err != nil {
			h.formatter.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	report, err := h.controller.pipeline.Run(req.Context(), station, start, end)
	switch {
	case err == nil:
	case errors.Is(err, fmi.ErrInvalidTimeRange):
		h.formatter.WriteError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, pipeline.ErrNoData):
		h.formatter.WriteError(w, http.StatusNotFound, err.Error())
		return
	default:
		log.Errorf("on-demand icing for station %d failed: %v", fmisid, err)
		h.formatter.WriteError(w, http.StatusBadGateway, "error fetching icing data")
		return
	}

	h.writeSeries(w, req, report, "")
}

// cachedReport resolves /stations/{fmisid}[?sensor=N]. Without a sensor the site must
// have exactly one cached detector.
func (h *Handlers) cachedReport(w http.ResponseWriter, req *http.Request) (*pipeline.Report, bool) {
	fmisid, err := strconv.Atoi(mux.Vars(req)["fmisid"])
	if err != nil {
		h.formatter.WriteError(w, http.StatusBadRequest, "invalid fmisid")
		return nil, false
	}

	cache := h.controller.cache

	if s := req.URL.Query().Get("sensor"); s != "" {
		sensor, err := strconv.Atoi(s)
		if err != nil || sensor < 0 {
			h.formatter.WriteError(w, http.StatusBadRequest, "invalid sensor parameter")
			return nil, false
		}
		report, ok := cache.Get(icingcache.Key{FMISID: fmisid, SensorID: sensor})
		if !ok {
			h.formatter.WriteError(w, http.StatusNotFound, "no icing data for station sensor")
			return nil, false
		}
		return report, true
	}

	reports := cache.Station(fmisid)
	switch len(reports) {
	case 0:
		h.formatter.WriteError(w, http.StatusNotFound, "no icing data for station")
		return nil, false
	case 1:
		return reports[0], true
	}

	sensors := make([]string, len(reports))
	for i, r := range reports {
		sensors[i] = strconv.Itoa(r.Config.SensorID)
	}
	h.formatter.WriteError(w, http.StatusBadRequest,
		fmt.Sprintf("station %d has sensors %s; select one with ?sensor=", fmisid, strings.Join(sensors, ", ")))
	return nil, false
}

func (h *Handlers) writeSeries(w http.ResponseWriter, req *http.Request, report *pipeline.Report, runID string) {
	if responseformat.Format(req) == responseformat.FormatCSV {
		detector := strconv.Itoa(report.Station.FMISID)
		if report.Config.SensorID != 0 {
			detector += "_" + strconv.Itoa(report.Config.SensorID)
		}
		filename := fmt.Sprintf("icing_%s_%s_%s.csv", detector,
			report.Start.UTC().Format(fmi.RequestTimeFormat), report.End.UTC().Format(fmi.RequestTimeFormat))
		err := h.formatter.WriteCSV(w, filename, func(out io.Writer) error {
			return summary.WriteCSV(out, report.Result)
		})
		if err != nil {
			log.Errorf("error writing CSV: %v", err)
		}
		return
	}

	resp := SeriesResponse{
		Station:          report.Summary,
		Start:            report.Start,
		End:              report.End,
		RunID:            runID,
		RepairedInstant:  report.Result.RepairedInstant,
		RepairedFiltered: report.Result.RepairedFiltered,
		Rows:             summary.Rows(report.Result),
	}
	if err := h.formatter.WriteResponse(w, req, resp, nil); err != nil {
		log.Errorf("error encoding series: %v", err)
	}
}
