// Copyright 2025 Edgeo SCADA
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package monitor

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/edgeo-scada/bacdecode/bacnet"
)

// Report is a flat description of one decoded frame
type Report struct {
	Time        time.Time `json:"time"`
	Link        string    `json:"link"`
	Source      string    `json:"source,omitempty"`
	Destination string    `json:"destination,omitempty"`
	Length      int       `json:"length"`

	BVLCFunction string `json:"bvlc_function,omitempty"`
	Origin       string `json:"origin,omitempty"`
	BVLCResult   string `json:"bvlc_result,omitempty"`

	MSTPType        string `json:"mstp_type,omitempty"`
	MSTPSource      *uint8 `json:"mstp_source,omitempty"`
	MSTPDestination *uint8 `json:"mstp_destination,omitempty"`
	HeaderCRC       string `json:"header_crc,omitempty"`
	DataCRC         string `json:"data_crc,omitempty"`

	NPDUControl    string `json:"npdu_control,omitempty"`
	Priority       string `json:"priority,omitempty"`
	ExpectingReply bool   `json:"expecting_reply,omitempty"`
	DestNetwork    string `json:"dnet,omitempty"`
	HopCount       *uint8 `json:"hop_count,omitempty"`
	SourceNetwork  string `json:"snet,omitempty"`

	NSDU      string  `json:"nsdu,omitempty"`
	PDUType   string  `json:"pdu_type,omitempty"`
	Service   string  `json:"service,omitempty"`
	InvokeID  *uint8  `json:"invoke_id,omitempty"`
	WhoIsLow  *uint32 `json:"who_is_low,omitempty"`
	WhoIsHigh *uint32 `json:"who_is_high,omitempty"`
	Device    string  `json:"device,omitempty"`
	VendorID  *uint32 `json:"vendor_id,omitempty"`
	Reason    string  `json:"reason,omitempty"`

	NLMType string   `json:"nlm_type,omitempty"`
	DNETs   []uint16 `json:"dnets,omitempty"`

	Error string `json:"error,omitempty"`
}

// ReportHeaders are the column names matching Report.Row
var ReportHeaders = []string{"TIME", "LINK", "SOURCE", "DESTINATION", "LEN", "FRAME", "NETWORK", "MESSAGE", "ERROR"}

// Row renders the report as table or CSV cells
func (r *Report) Row() []string {
	ts := ""
	if !r.Time.IsZero() {
		ts = r.Time.Format("15:04:05.000000")
	}
	return []string{
		ts,
		r.Link,
		r.Source,
		r.Destination,
		strconv.Itoa(r.Length),
		r.frameSummary(),
		r.networkSummary(),
		r.Summary(),
		r.Error,
	}
}

func (r *Report) frameSummary() string {
	if r.BVLCFunction != "" {
		if r.Origin != "" {
			return r.BVLCFunction + " from " + r.Origin
		}
		return r.BVLCFunction
	}
	if r.MSTPType == "" {
		return ""
	}
	parts := []string{r.MSTPType}
	if r.MSTPSource != nil && r.MSTPDestination != nil {
		parts = append(parts, fmt.Sprintf("%d->%d", *r.MSTPSource, *r.MSTPDestination))
	}
	if r.HeaderCRC != "" && r.HeaderCRC != "ok" {
		parts = append(parts, "header-crc "+r.HeaderCRC)
	}
	if r.DataCRC != "" && r.DataCRC != "ok" {
		parts = append(parts, "data-crc "+r.DataCRC)
	}
	return strings.Join(parts, " ")
}

func (r *Report) networkSummary() string {
	var parts []string
	if r.SourceNetwork != "" {
		parts = append(parts, "snet "+r.SourceNetwork)
	}
	if r.DestNetwork != "" {
		parts = append(parts, "dnet "+r.DestNetwork)
	}
	if r.HopCount != nil {
		parts = append(parts, fmt.Sprintf("hops %d", *r.HopCount))
	}
	return strings.Join(parts, " ")
}

// Summary describes the network or application message in one line
func (r *Report) Summary() string {
	if r.NLMType != "" {
		s := r.NLMType
		if len(r.DNETs) > 0 {
			nets := make([]string, len(r.DNETs))
			for i, n := range r.DNETs {
				nets[i] = strconv.Itoa(int(n))
			}
			s += " [" + strings.Join(nets, ",") + "]"
		}
		if r.VendorID != nil {
			s += fmt.Sprintf(" vendor=%d", *r.VendorID)
		}
		if r.Reason != "" {
			s += " " + r.Reason
		}
		return s
	}
	if r.PDUType == "" {
		return r.BVLCResult
	}

	parts := []string{r.PDUType}
	if r.Service != "" {
		parts = append(parts, r.Service)
	}
	if r.InvokeID != nil {
		parts = append(parts, fmt.Sprintf("invoke=%d", *r.InvokeID))
	}
	if r.WhoIsLow != nil && r.WhoIsHigh != nil {
		parts = append(parts, fmt.Sprintf("range=%d-%d", *r.WhoIsLow, *r.WhoIsHigh))
	}
	if r.Device != "" {
		parts = append(parts, r.Device)
	}
	if r.VendorID != nil {
		parts = append(parts, fmt.Sprintf("vendor=%d", *r.VendorID))
	}
	if r.Reason != "" {
		parts = append(parts, r.Reason)
	}
	return strings.Join(parts, " ")
}

func (r *Report) addBVLC(b *bacnet.BVLC) {
	r.BVLCFunction = b.Function.String()
	if b.Origin != nil {
		r.Origin = b.Origin.String()
	}
	if code, err := b.ResultCode(); err == nil {
		r.BVLCResult = code.String()
	}
}

func (r *Report) addMSTP(f *bacnet.MSTPFrame) {
	r.MSTPType = f.Type.String()
	src, dst := f.Source, f.Destination
	r.MSTPSource = &src
	r.MSTPDestination = &dst
	if f.CRCs == nil {
		return
	}
	r.HeaderCRC = crcStatus(f.CRCs.HeaderValid(), uint16(f.CRCs.HeaderActual), uint16(f.CRCs.HeaderComputed))
	if f.CRCs.DataPresent {
		r.DataCRC = crcStatus(f.CRCs.DataValid(), f.CRCs.DataActual, f.CRCs.DataComputed)
	}
}

func crcStatus(valid bool, actual, computed uint16) string {
	if valid {
		return "ok"
	}
	return fmt.Sprintf("0x%x!=0x%x", actual, computed)
}

func (r *Report) addNPDU(n *bacnet.NPDU) {
	r.NPDUControl = fmt.Sprintf("0x%02x", uint8(n.Control))
	r.Priority = n.Control.Priority().String()
	r.ExpectingReply = n.Control.ExpectingReply()
	if n.Destination != nil {
		r.DestNetwork = n.Destination.NetworkAddress.String()
		hops := n.Destination.HopCount
		r.HopCount = &hops
	}
	if n.Source != nil {
		r.SourceNetwork = n.Source.String()
	}
}

func (r *Report) addAPDU(a *bacnet.APDU) {
	r.PDUType = a.Type.String()

	switch a.Type {
	case bacnet.PDUTypeConfirmedRequest:
		if req, err := a.ConfirmedRequest(); err == nil {
			r.Service = req.Service.String()
			r.setInvokeID(req.InvokeID)
		}
	case bacnet.PDUTypeUnconfirmedRequest:
		r.addUnconfirmed(a.Unconfirmed)
	case bacnet.PDUTypeSimpleAck:
		if ack, err := a.SimpleAck(); err == nil {
			r.Service = ack.Service.String()
			r.setInvokeID(ack.InvokeID)
		}
	case bacnet.PDUTypeComplexAck:
		if ack, err := a.ComplexAck(); err == nil {
			r.Service = ack.Service.String()
			r.setInvokeID(ack.InvokeID)
		}
	case bacnet.PDUTypeSegmentAck:
		if ack, err := a.SegmentAck(); err == nil {
			r.setInvokeID(ack.InvokeID)
		}
	case bacnet.PDUTypeError:
		r.setInvokeID(a.Error.InvokeID)
		r.Reason = a.Error.Class.String() + "/" + a.Error.Code.String()
	case bacnet.PDUTypeReject:
		if rej, err := a.Reject(); err == nil {
			r.setInvokeID(rej.InvokeID)
			r.Reason = rej.Reason.String()
		}
	case bacnet.PDUTypeAbort:
		if ab, err := a.Abort(); err == nil {
			r.setInvokeID(ab.InvokeID)
			r.Reason = ab.Reason.String()
		}
	}
}

func (r *Report) addUnconfirmed(u *bacnet.UnconfirmedRequest) {
	r.Service = u.Service.String()
	if u.WhoIs != nil && u.WhoIs.Limits != nil {
		low, high := u.WhoIs.Limits.Low, u.WhoIs.Limits.High
		r.WhoIsLow = &low
		r.WhoIsHigh = &high
	}
	if u.Service == bacnet.ServiceIAm {
		iam, err := u.IAm()
		if err != nil {
			r.Error = err.Error()
			return
		}
		r.Device = iam.Device.String()
		vendor := iam.VendorID
		r.VendorID = &vendor
	}
}

func (r *Report) setInvokeID(id uint8) {
	r.InvokeID = &id
}

func (r *Report) addNLM(n *bacnet.NLM) {
	r.NLMType = n.Type.String()

	switch n.Type {
	case bacnet.NetworkMessageWhoIsRouterToNetwork:
		if dnet, ok := n.WhoIsRouterDNET(); ok {
			r.DNETs = []uint16{dnet}
		}
	case bacnet.NetworkMessageIAmRouterToNetwork,
		bacnet.NetworkMessageRouterBusyToNetwork,
		bacnet.NetworkMessageRouterAvailableToNetwork:
		r.DNETs = n.DNETs().Collect()
	case bacnet.NetworkMessageICouldBeRouterToNetwork:
		if dnet, index, err := n.PerformanceIndex(); err == nil {
			r.DNETs = []uint16{dnet}
			r.Reason = fmt.Sprintf("performance-index=%d", index)
		}
	case bacnet.NetworkMessageRejectMessageToNetwork:
		if reason, dnet, err := n.RejectReason(); err == nil {
			r.DNETs = []uint16{dnet}
			r.Reason = reason.String()
		}
	default:
		if vendor, err := n.VendorID(); err == nil {
			id := uint32(vendor)
			r.VendorID = &id
		}
	}
}
