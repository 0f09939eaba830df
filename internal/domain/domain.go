package domain

// Records owned by the AroFlo API. Only the fields this tool reads are
// modelled; the remote service owns their lifecycle.

type Invoice struct {
	InvoiceID     Text      `json:"invoiceid"`
	InvoiceNumber Text      `json:"invoicenumber"`
	InvoiceDate   string    `json:"invoicedate"`
	ClientName    string    `json:"clientname"`
	Client        ClientRef `json:"client"`
	TotalExGST    Amount    `json:"totalexgst"`
	LineItems     LineItems `json:"lineitems"`
}

// ClientLabel prefers the flat clientname field and falls back to the
// nested client record.
func (i Invoice) ClientLabel() string {
	if i.ClientName != "" {
		return i.ClientName
	}
	return i.Client.Name
}

type LineItem struct {
	Type       string `json:"type"`
	TotalExGST Amount `json:"totalexgst"`
	Amount     Amount `json:"amount"`
}

// Value is totalexgst when set, otherwise amount.
func (l LineItem) Value() float64 {
	if l.TotalExGST != 0 {
		return float64(l.TotalExGST)
	}
	return float64(l.Amount)
}

type Task struct {
	TaskID      Text         `json:"taskid"`
	TaskNo      Text         `json:"taskno"`
	TaskName    string       `json:"taskname"`
	JobNumber   Text         `json:"jobnumber"`
	Description string       `json:"description"`
	Status      string       `json:"status"`
	Substatus   SubstatusRef `json:"substatus"`
	Client      ClientRef    `json:"client"`

	// LabourNotes holds the joined timesheet notes for the task's job. It is
	// attached locally and never sent back.
	LabourNotes string `json:"-"`
}

// Name returns the task name or a placeholder for unnamed tasks.
func (t Task) Name() string {
	if t.TaskName != "" {
		return t.TaskName
	}
	return "Unnamed"
}

type Timesheet struct {
	TimesheetID   Text          `json:"timesheetid"`
	Note          string        `json:"note"`
	WorkDate      string        `json:"workdate"`
	StartDateTime string        `json:"startdatetime"`
	Task          TimesheetTask `json:"task"`
	User          TimesheetUser `json:"user"`
}

type TimesheetTask struct {
	TaskID    Text `json:"taskid"`
	JobNumber Text `json:"jobnumber"`
}

type TimesheetUser struct {
	GivenNames string `json:"givennames"`
	Surname    string `json:"surname"`
}

// FullName joins given names and surname.
func (u TimesheetUser) FullName() string {
	switch {
	case u.GivenNames == "":
		return u.Surname
	case u.Surname == "":
		return u.GivenNames
	}
	return u.GivenNames + " " + u.Surname
}

// StartTime returns HH:MM from a "2026/01/14 10:00:00" style start stamp.
func (t Timesheet) StartTime() string {
	for i := 0; i < len(t.StartDateTime); i++ {
		if t.StartDateTime[i] == ' ' {
			rest := t.StartDateTime[i+1:]
			if len(rest) > 5 {
				rest = rest[:5]
			}
			return rest
		}
	}
	return ""
}

type Substatus struct {
	SubstatusID Text   `json:"substatusid"`
	Name        string `json:"substatus"`
}

type ClientRef struct {
	ClientID Text   `json:"clientid"`
	Name     string `json:"name"`
}

type SubstatusRef struct {
	SubstatusID Text   `json:"substatusid"`
	Name        string `json:"substatus"`
}
