// Package factory provides a small generic registry used to instantiate
// pluggable modules, such as metrics sinks or decision log stores, from
// configuration. A module is described by a type string and a map of raw
// settings that the factory decodes into its own typed struct:
//
//	reg := factory.NewRegistry[logging.LogStore]()
//	reg.Register("jsonl", func(conf map[string]any) (logging.LogStore, error) {
//	    var c struct{ Path string `json:"path"` }
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return logging.NewJSONLStore(c.Path)
//	})
//	store, err := reg.Create(factory.ModuleConfig{Type: "jsonl", Conf: map[string]any{"path": "decisions.jsonl"}})
package factory
