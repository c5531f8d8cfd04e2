package dsl

// Collection описывает объявление коллекции из DSL
type Collection struct {
	Name       string
	Properties []Property
	Events     map[string]string // событие -> имя зарегистрированного скрипта
}

// Property описывает свойство документа
type Property struct {
	Name     string
	Type     string // string, number, boolean, array, object, date
	Required bool
}
