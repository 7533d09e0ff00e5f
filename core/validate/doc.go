// Package validate provides the rule-based validator consumed by the
// preference injector on the write path.
//
// Rules are registered per preference key; a key with no rules always
// validates. Every registered rule runs, so a rejected write carries
// the complete list of failures rather than just the first one.
//
// # Usage
//
//	v := validate.New()
//	v.Register("volume", validate.OfKind(prefs.KindNumber), validate.Range(0, 100))
//	v.Register("theme", validate.OneOf(prefs.String("light"), prefs.String("dark")))
//
//	injector := prefs.NewInjector(prefs.Config{
//	    Validator:         v,
//	    ValidationEnabled: true,
//	})
package validate
