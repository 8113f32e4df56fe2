package core

import (
	"slices"

	"github.com/amoylab/mdprovider/pkg/omm"
	"github.com/ifuryst/lol"
)

// ServiceState is the up/down state advertised in the directory.
type ServiceState uint8

const (
	ServiceDown ServiceState = 0
	ServiceUp   ServiceState = 1
)

func (s ServiceState) String() string {
	if s == ServiceUp {
		return "Up"
	}
	return "Down"
}

// ServiceStatus is the status carried in the directory STATE filter, mostly
// relevant when the service goes down.
type ServiceStatus struct {
	StreamState omm.StreamState
	DataState   omm.DataState
	Code        omm.StatusCode
	Text        string
}

// ServiceInfo describes one published service. It is the only source the
// directory builds responses from.
type ServiceInfo struct {
	Name     string
	ID       uint16
	Vendor   string
	IsSource bool
	QoS      []string

	capabilities  []omm.MsgModelType
	dictsProvided []string
	dictsUsed     []string
	state         ServiceState
	accepting     bool
	status        ServiceStatus

	dir *ServiceDirectory
}

// NewServiceInfo returns a service in the down state with no capabilities.
func NewServiceInfo(name string, id uint16) *ServiceInfo {
	return &ServiceInfo{
		Name:   name,
		ID:     id,
		status: ServiceStatus{StreamState: omm.StreamOpen, DataState: omm.DataSuspect},
	}
}

// AddCapability adds a model type to the capability set, kept in ascending
// order so the result does not depend on registration order.
func (s *ServiceInfo) AddCapability(t omm.MsgModelType) {
	i, found := slices.BinarySearch(s.capabilities, t)
	if found {
		return
	}
	s.capabilities = slices.Insert(s.capabilities, i, t)
	s.changed(omm.FilterInfo)
}

func (s *ServiceInfo) HasCapability(t omm.MsgModelType) bool {
	_, found := slices.BinarySearch(s.capabilities, t)
	return found
}

// Capabilities returns a copy of the capability set.
func (s *ServiceInfo) Capabilities() []omm.MsgModelType {
	return slices.Clone(s.capabilities)
}

func (s *ServiceInfo) AddDictionaryProvided(name string) {
	if slices.Contains(s.dictsProvided, name) {
		return
	}
	s.dictsProvided = lol.UniqSlice(append(s.dictsProvided, name))
	s.changed(omm.FilterInfo)
}

func (s *ServiceInfo) AddDictionaryUsed(name string) {
	if slices.Contains(s.dictsUsed, name) {
		return
	}
	s.dictsUsed = lol.UniqSlice(append(s.dictsUsed, name))
	s.changed(omm.FilterInfo)
}

func (s *ServiceInfo) DictionariesProvided() []string { return slices.Clone(s.dictsProvided) }
func (s *ServiceInfo) DictionariesUsed() []string { return slices.Clone(s.dictsUsed) }

func (s *ServiceInfo) State() ServiceState { return s.state }
func (s *ServiceInfo) AcceptingRequests() bool { return s.accepting }
func (s *ServiceInfo) Status() ServiceStatus { return s.status }

// SetUp marks the service up and accepting requests.
func (s *ServiceInfo) SetUp() {
	s.SetState(ServiceUp, true, ServiceStatus{StreamState: omm.StreamOpen, DataState: omm.DataOk})
}

// SetDown marks the service down. Consumers see text as the status reason.
func (s *ServiceInfo) SetDown(text string) {
	s.SetState(ServiceDown, false, ServiceStatus{
		StreamState: omm.StreamOpen,
		DataState:   omm.DataSuspect,
		Code:        omm.StatusNone,
		Text:        text,
	})
}

// SetState replaces the STATE filter content. Setting the same state twice is
// not a change.
func (s *ServiceInfo) SetState(state ServiceState, accepting bool, status ServiceStatus) {
	if s.state == state && s.accepting == accepting && s.status == status {
		return
	}
	s.state = state
	s.accepting = accepting
	s.status = status
	s.changed(omm.FilterState)
}

func (s *ServiceInfo) changed(filter uint32) {
	if s.dir != nil {
		s.dir.notify(s, filter)
	}
}

// ServiceChangeFunc is told which filter sections of a service changed.
type ServiceChangeFunc func(svc *ServiceInfo, filter uint32)

// ServiceDirectory holds every published service, in the order added.
type ServiceDirectory struct {
	services  []*ServiceInfo
	byName    map[string]*ServiceInfo
	listeners []ServiceChangeFunc
}

func NewServiceDirectory() *ServiceDirectory {
	return &ServiceDirectory{byName: make(map[string]*ServiceInfo)}
}

// Add publishes svc. Adding a second service with the same name replaces the first.
func (d *ServiceDirectory) Add(svc *ServiceInfo) {
	svc.dir = d
	if old, ok := d.byName[svc.Name]; ok {
		old.dir = nil
		for i, s := range d.services {
			if s == old {
				d.services[i] = svc
			}
		}
	} else {
		d.services = append(d.services, svc)
	}
	d.byName[svc.Name] = svc
	d.notify(svc, omm.FilterInfo|omm.FilterState)
}

func (d *ServiceDirectory) Get(name string) (*ServiceInfo, bool) {
	svc, ok := d.byName[name]
	return svc, ok
}

func (d *ServiceDirectory) ByID(id uint16) (*ServiceInfo, bool) {
	for _, svc := range d.services {
		if svc.ID == id {
			return svc, true
		}
	}
	return nil, false
}

// All returns the services in publication order.
func (d *ServiceDirectory) All() []*ServiceInfo {
	return slices.Clone(d.services)
}

// Subscribe registers fn for every later change.
func (d *ServiceDirectory) Subscribe(fn ServiceChangeFunc) {
	d.listeners = append(d.listeners, fn)
}

func (d *ServiceDirectory) notify(svc *ServiceInfo, filter uint32) {
	for _, fn := range d.listeners {
		fn(svc, filter)
	}
}
