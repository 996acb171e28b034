package project

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/ethoflow/ethoflow/internal/model"
)

// yamlProject is the hand-editable project layout:
//
//	name: pilot
//	ethogram:
//	  - {code: rest, type: state}
//	  - {code: bark, type: point}
//	subjects: [{name: A}]
//	observations:
//	  obs1:
//	    media_length: "120"
//	    events:
//	      - {time: "1.5", subject: A, code: rest}
//	      - {time: "9", subject: A, code: rest, status: STOP}
type yamlProject struct {
	Name         string                     `yaml:"name"`
	Ethogram     []yamlBehavior             `yaml:"ethogram"`
	Subjects     []yamlSubject              `yaml:"subjects"`
	Observations map[string]yamlObservation `yaml:"observations"`
}

type yamlBehavior struct {
	Code        string `yaml:"code"`
	Type        string `yaml:"type"`
	Description string `yaml:"description"`
	Category    string `yaml:"category"`
}

type yamlSubject struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

type yamlObservation struct {
	MediaLength *model.Time `yaml:"media_length"`
	Events      []yamlEvent `yaml:"events"`
}

type yamlEvent struct {
	Time     model.Time `yaml:"time"`
	Subject  string     `yaml:"subject"`
	Code     string     `yaml:"code"`
	Modifier string     `yaml:"modifier"`
	Status   string     `yaml:"status"`
}

func decodeYAML(data []byte) (*model.Project, error) {
	var raw yamlProject
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode project: %w", err)
	}

	p := &model.Project{
		Name:         raw.Name,
		Ethogram:     make(model.Ethogram, len(raw.Ethogram)),
		Observations: make(map[string]*model.Observation, len(raw.Observations)),
	}

	for _, b := range raw.Ethogram {
		if b.Code == "" {
			return nil, fmt.Errorf("ethogram entry without code")
		}
		if _, dup := p.Ethogram[b.Code]; dup {
			return nil, fmt.Errorf("duplicate behavior code %q", b.Code)
		}
		kind, err := parseKind(b.Type)
		if err != nil {
			return nil, fmt.Errorf("behavior %s: %w", b.Code, err)
		}
		p.Ethogram[b.Code] = model.Behavior{
			Code:        b.Code,
			Kind:        kind,
			Description: b.Description,
			Category:    b.Category,
		}
	}

	for _, s := range raw.Subjects {
		p.Subjects = append(p.Subjects, model.Subject{Name: s.Name, Description: s.Description})
	}

	for id, o := range raw.Observations {
		obs := &model.Observation{ID: id, Events: make([]model.Event, 0, len(o.Events))}
		for _, e := range o.Events {
			obs.Events = append(obs.Events, model.Event{
				Time:     e.Time,
				Subject:  model.SubjectKey(e.Subject),
				Behavior: e.Code,
				Modifier: e.Modifier,
				Status:   model.ParseStatus(e.Status),
			})
		}
		if o.MediaLength != nil {
			obs.MediaLength, obs.HasMediaLength = *o.MediaLength, true
		}
		p.Observations[id] = obs
	}

	return p, nil
}
