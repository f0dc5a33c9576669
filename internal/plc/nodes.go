package plc

// Nodes holds the OPC UA node ids for every PLC register the controller
// touches. The defaults match the plant PLC's address map; individual ids
// can be overridden from configuration when the PLC program changes.
type Nodes struct {
	// Main command register and handshake lines.
	Command       string `yaml:"command"`        // 20-char command string, WMS -> PLC
	SendStrobe    string `yaml:"send_strobe"`    // command-valid strobe, WMS -> PLC
	Ack           string `yaml:"ack"`            // command received, PLC -> WMS
	Complete      string `yaml:"complete"`       // motion finished, PLC -> WMS
	CompleteReply string `yaml:"complete_reply"` // completion acknowledge, WMS -> PLC

	// Out-of-band clear handshake.
	ClearRequest string `yaml:"clear_request"` // PLC -> WMS
	ClearReply   string `yaml:"clear_reply"`   // WMS -> PLC

	// Secondary QR handshake, multiplexed onto the cycle.
	BasketQR     string `yaml:"basket_qr"`      // basket id value register
	SendBasketQR string `yaml:"send_basket_qr"` // PLC requests a QR exchange
	ReceiveQR    string `yaml:"receive_qr"`     // WMS acknowledges the exchange

	// Health flags.
	Ready    string `yaml:"ready"`
	AutoMode string `yaml:"auto_mode"`
	Alarm    string `yaml:"alarm"`

	// Crane position encoders, Int32.
	CraneX string `yaml:"crane_x"`
	CraneY string `yaml:"crane_y"`
}

// DefaultNodes returns the plant PLC's address map.
func DefaultNodes() Nodes {
	return Nodes{
		Command:       "ns=4;i=3",
		SendStrobe:    "ns=4;i=15",
		Ack:           "ns=4;i=16",
		Complete:      "ns=4;i=12",
		CompleteReply: "ns=4;i=13",
		ClearRequest:  "ns=4;i=12",
		ClearReply:    "ns=4;i=13",
		BasketQR:      "ns=4;i=2",
		SendBasketQR:  "ns=4;i=14",
		ReceiveQR:     "ns=4;i=17",
		Ready:         "ns=4;i=18",
		AutoMode:      "ns=4;i=19",
		Alarm:         "ns=4;i=20",
		CraneX:        "ns=4;i=21",
		CraneY:        "ns=4;i=22",
	}
}
