package s1ap

import "github.com/free5gc/mme/internal/model"

// Output is the registration notification emitted to downstream consumers.
// For UnReg the CGI is the subscriber's last known serving cell, captured
// before the record was erased; a nil CGI means none was ever learned.
type Output struct {
	outputType model.OutputType
	imsi       model.Imsi
	cgi        model.Cgi
}

// NewOutput builds an Output. The CGI is copied so the notification stays
// immutable after the originating event is gone.
func NewOutput(outputType model.OutputType, imsi model.Imsi, cgi model.Cgi) Output {
	return Output{
		outputType: outputType,
		imsi:       imsi,
		cgi:        cgi.Clone(),
	}
}

// Type returns the notification tag (Reg, UnReg, CgiChange).
func (output Output) Type() model.OutputType { return output.outputType }

// Imsi returns the subject subscriber identity.
func (output Output) Imsi() model.Imsi { return output.imsi }

// Cgi returns a copy of the CGI, or nil if absent.
func (output Output) Cgi() model.Cgi { return output.cgi.Clone() }

// HasCgi reports whether the notification carries a CGI.
func (output Output) HasCgi() bool { return output.cgi != nil }
